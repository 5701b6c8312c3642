package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"orderdesk/pkg/otel"
	"orderdesk/pkg/product"
)

const maxUploadSize = 10 << 20

// imageResponse is the body returned by the upload endpoint.
type imageResponse struct {
	Product product.Product `json:"product"`
}

// listProductsHandler lists the catalog.
// @Summary List products
// @Produce json
// @Success 200 {object} Page[product.Product]
// @Security ApiKeyAuth
// @Router /products [get]
func (s *Server) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "listProductsHandler")
	defer span.End()

	products, err := s.products.List(ctx)
	if err != nil {
		s.log.Error(ctx, "list products", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newPage(products))
}

// createProductHandler adds a product to the catalog.
// @Summary Create product
// @Accept json
// @Produce json
// @Param product body product.Input true "Product"
// @Success 201 {object} product.Product
// @Failure 400 {object} errorResponse
// @Security ApiKeyAuth
// @Router /products [post]
func (s *Server) createProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "createProductHandler")
	defer span.End()

	var in product.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := in.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}
	p := product.Product{ID: s.newID()}.Apply(in)
	if err := s.products.Create(ctx, p); err != nil {
		s.log.Error(ctx, "create product", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// updateProductHandler replaces (PUT) or patches (PATCH) a product.
// @Summary Update product
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param product body product.Input true "Product"
// @Success 200 {object} product.Product
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Security ApiKeyAuth
// @Router /products/{id} [put]
func (s *Server) updateProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "updateProductHandler")
	defer span.End()

	current, err := s.products.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		s.writeProductError(w, r, "get product", err)
		return
	}
	var in product.Input
	if r.Method == http.MethodPatch {
		in = current.Input()
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := in.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}
	p := current.Apply(in)
	if err := s.products.Update(ctx, p); err != nil {
		s.writeProductError(w, r, "update product", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// uploadProductImageHandler stores the multipart field "image" and links it
// to the product.
// @Summary Upload product image
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Product ID"
// @Param image formData file true "Image"
// @Success 200 {object} imageResponse
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Security ApiKeyAuth
// @Router /products/upload-image/{id} [post]
func (s *Server) uploadProductImageHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "uploadProductImageHandler")
	defer span.End()

	if s.images == nil {
		writeError(w, http.StatusNotImplemented, "image uploads are disabled")
		return
	}
	p, err := s.products.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		s.writeProductError(w, r, "get product", err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	url, err := s.images.Save(ctx, p.ID, header.Filename, file)
	if errors.Is(err, ErrUnsupportedImage) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.log.Error(ctx, "save image", "error", err)
		writeError(w, http.StatusInternalServerError, "could not store image")
		return
	}
	p.ImageURL = url
	if err := s.products.Update(ctx, p); err != nil {
		if rerr := s.images.Remove(ctx, url); rerr != nil {
			s.log.Warn(ctx, "remove orphaned image", "url", url, "error", rerr)
		}
		s.writeProductError(w, r, "update product", err)
		return
	}
	s.log.Info(ctx, "product image uploaded", "product_id", p.ID, "url", url)
	writeJSON(w, http.StatusOK, imageResponse{Product: p})
}

func (s *Server) writeProductError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, product.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.log.Error(r.Context(), op, "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verr *product.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Fields: verr.Fields})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
