package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"orderdesk/pkg/cache"
	"orderdesk/pkg/order"
	"orderdesk/pkg/product"
	"orderdesk/pkg/view"
)

func ordersCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "orders",
		Usage: "list and edit orders",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list orders",
				Action: func(c *cli.Context) error {
					if err := e.store.FetchOrders(c.Context); err != nil {
						return err
					}
					return printOrders(e.out, e.store.Orders())
				},
			},
			{
				Name:      "show",
				Usage:     "show one order and its items",
				ArgsUsage: "ORDER_ID",
				Action: func(c *cli.Context) error {
					o, err := e.page(c).Load(c.Context)
					if err != nil {
						return err
					}
					return printOrder(e.out, o)
				},
			},
			{
				Name:      "create",
				Usage:     "open an empty order",
				ArgsUsage: "CUSTOMER_NAME",
				Action: func(c *cli.Context) error {
					name, err := arg(c, 0, "CUSTOMER_NAME")
					if err != nil {
						return err
					}
					o, err := e.client.CreateOrder(c.Context, name)
					if err != nil {
						return err
					}
					fmt.Fprintln(e.out, o.ID)
					return nil
				},
			},
			{
				Name:      "add-item",
				Usage:     "add a product by weight or by pieces",
				ArgsUsage: "ORDER_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "product", Required: true, Usage: "product id"},
					&cli.Float64Flag{Name: "weight", Usage: "weight in kilos"},
					&cli.Float64Flag{Name: "pieces", Usage: "number of pieces"},
				},
				Action: func(c *cli.Context) error {
					page, err := e.loadedPage(c)
					if err != nil {
						return err
					}
					in := order.ItemInput{
						ProductID: c.String("product"),
						Weight:    c.Float64("weight"),
						Pieces:    c.Float64("pieces"),
					}
					o, err := page.AddItem(c.Context, in)
					if err != nil {
						return err
					}
					return printOrder(e.out, o)
				},
			},
			{
				Name:      "delete-item",
				Usage:     "remove an item from an order",
				ArgsUsage: "ORDER_ID ITEM_ID",
				Action: func(c *cli.Context) error {
					itemID, err := arg(c, 1, "ITEM_ID")
					if err != nil {
						return err
					}
					page, err := e.loadedPage(c)
					if err != nil {
						return err
					}
					o, err := page.DeleteItem(c.Context, itemID)
					if errors.Is(err, cache.ErrNotConfirmed) {
						fmt.Fprintln(e.errOut, "cancelled")
						return nil
					}
					if err != nil {
						return err
					}
					return printOrder(e.out, o)
				},
			},
			{
				Name:      "delete",
				Usage:     "delete an order",
				ArgsUsage: "ORDER_ID",
				Action: func(c *cli.Context) error {
					page, err := e.loadedPage(c)
					if err != nil {
						return err
					}
					err = page.DeleteOrder(c.Context)
					if errors.Is(err, cache.ErrNotConfirmed) {
						fmt.Fprintln(e.errOut, "cancelled")
						return nil
					}
					return err
				},
			},
			{
				Name:      "export",
				Usage:     "download an order export",
				ArgsUsage: "ORDER_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write to this file, or into this directory"},
				},
				Action: func(c *cli.Context) error {
					if _, err := arg(c, 0, "ORDER_ID"); err != nil {
						return err
					}
					a, err := e.page(c).Export(c.Context)
					if err != nil {
						return err
					}
					dest := c.String("out")
					if dest == "" {
						_, err := e.out.Write(a.Data)
						return err
					}
					if fi, err := os.Stat(dest); err == nil && fi.IsDir() {
						name := a.Filename
						if name == "" {
							name = "order.csv"
						}
						dest = filepath.Join(dest, filepath.Base(name))
					}
					if err := os.WriteFile(dest, a.Data, 0o644); err != nil {
						return err
					}
					fmt.Fprintln(e.errOut, "wrote", dest)
					return nil
				},
			},
		},
	}
}

func productsCommand(e *env) *cli.Command {
	inputFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{Name: "name"},
			&cli.Float64Flag{Name: "price", Usage: "price per kilo"},
			&cli.StringFlag{Name: "category", Usage: fmt.Sprintf("one of %q", product.Categories)},
			&cli.Float64Flag{Name: "pieces-per-kilo"},
		}
	}
	return &cli.Command{
		Name:  "products",
		Usage: "list and edit the catalog",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list products by category and name",
				Flags: []cli.Flag{&cli.StringFlag{Name: "search", Aliases: []string{"s"}}},
				Action: func(c *cli.Context) error {
					ps, err := view.NewProducts(e.store, nil).List(c.Context, c.String("search"))
					if err != nil {
						return err
					}
					return printProducts(e.out, ps)
				},
			},
			{
				Name:  "add",
				Usage: "add a product",
				Flags: inputFlags(),
				Action: func(c *cli.Context) error {
					p, err := view.NewProducts(e.store, e.notifier()).Add(c.Context, product.Input{
						Name:          c.String("name"),
						Price:         c.Float64("price"),
						Category:      product.Category(c.String("category")),
						PiecesPerKilo: c.Float64("pieces-per-kilo"),
					})
					if err != nil {
						return err
					}
					fmt.Fprintln(e.out, p.ID)
					return nil
				},
			},
			{
				Name:      "update",
				Usage:     "change fields of a product; omitted flags keep their value",
				ArgsUsage: "PRODUCT_ID",
				Flags:     inputFlags(),
				Action: func(c *cli.Context) error {
					p, err := e.findProduct(c)
					if err != nil {
						return err
					}
					if c.IsSet("name") {
						p.Name = c.String("name")
					}
					if c.IsSet("price") {
						p.Price = c.Float64("price")
					}
					if c.IsSet("category") {
						p.Category = product.Category(c.String("category"))
					}
					if c.IsSet("pieces-per-kilo") {
						p.PiecesPerKilo = c.Float64("pieces-per-kilo")
					}
					p, err = view.NewProducts(e.store, e.notifier()).Update(c.Context, p)
					if err != nil {
						return err
					}
					return printProducts(e.out, []product.Product{p})
				},
			},
			{
				Name:      "upload-image",
				Usage:     "attach an image file to a product",
				ArgsUsage: "PRODUCT_ID FILE",
				Action: func(c *cli.Context) error {
					id, err := arg(c, 0, "PRODUCT_ID")
					if err != nil {
						return err
					}
					path, err := arg(c, 1, "FILE")
					if err != nil {
						return err
					}
					f, err := os.Open(path)
					if err != nil {
						return err
					}
					defer f.Close()
					if err := e.store.FetchProducts(c.Context); err != nil {
						return err
					}
					p, err := view.NewProducts(e.store, e.notifier()).UploadImage(c.Context, id, filepath.Base(path), f)
					if err != nil {
						return err
					}
					fmt.Fprintln(e.out, product.DisplayImageURL(p.ImageURL))
					return nil
				},
			},
		},
	}
}

func arg(c *cli.Context, i int, name string) (string, error) {
	v := c.Args().Get(i)
	if v == "" {
		return "", fmt.Errorf("missing %s", name)
	}
	return v, nil
}

func (e *env) page(c *cli.Context) *view.OrderDetails {
	return view.NewOrderDetails(e.store, c.Args().First(), e.confirm, e.notifier())
}

// loadedPage returns the page for the first argument once the order is
// known to exist.
func (e *env) loadedPage(c *cli.Context) (*view.OrderDetails, error) {
	if _, err := arg(c, 0, "ORDER_ID"); err != nil {
		return nil, err
	}
	page := e.page(c)
	if _, err := page.Load(c.Context); err != nil {
		return nil, err
	}
	return page, nil
}

func (e *env) findProduct(c *cli.Context) (product.Product, error) {
	id, err := arg(c, 0, "PRODUCT_ID")
	if err != nil {
		return product.Product{}, err
	}
	if err := e.store.FetchProducts(c.Context); err != nil {
		return product.Product{}, err
	}
	for _, p := range e.store.Products() {
		if p.ID == id {
			return p, nil
		}
	}
	return product.Product{}, fmt.Errorf("product %s not found", id)
}

func printOrders(w io.Writer, orders []order.Order) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCUSTOMER\tCREATED\tITEMS\tWEIGHT\tTOTAL")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			o.ID, o.CustomerName, o.CreatedAt.Format("2006-01-02 15:04"), len(o.Items),
			num(o.TotalWeight), money(o.TotalPrice))
	}
	return tw.Flush()
}

func printOrder(w io.Writer, o order.Order) error {
	fmt.Fprintf(w, "Order %s for %s\n\n", o.ID, o.CustomerName)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tPRODUCT\tPIECES\tWEIGHT\tPRICE")
	for _, it := range o.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.ProductName, num(it.Pieces), num(it.Weight), money(it.Price))
	}
	fmt.Fprintf(tw, "\tTOTAL\t%s\t%s\t%s\n", num(o.TotalPieces), num(o.TotalWeight), money(o.TotalPrice))
	return tw.Flush()
}

func printProducts(w io.Writer, ps []product.Product) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE/KG\tPIECES/KG\tIMAGE")
	for _, p := range ps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Name, p.Category, money(p.Price), num(p.PiecesPerKilo), p.ImageURL)
	}
	return tw.Flush()
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func money(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }
