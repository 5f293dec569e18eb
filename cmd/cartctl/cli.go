package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sneakerhub/storefront/internal/di"
	"github.com/sneakerhub/storefront/internal/domain"
	"github.com/sneakerhub/storefront/internal/platform/config"
	"github.com/sneakerhub/storefront/internal/platform/observability"
	"github.com/sneakerhub/storefront/internal/platform/requestctx"
	"github.com/sneakerhub/storefront/internal/platform/secrets"
	"github.com/sneakerhub/storefront/internal/services"
)

var errCheckoutRejected = errors.New("checkout rejected")

type cli struct {
	out io.Writer

	// env takes precedence over the process environment; systemEnv false ignores it.
	env       map[string]string
	systemEnv bool

	device  string
	store   string
	locale  string
	envFile string
	verbose bool

	container *di.Container
	resolver  *secrets.Resolver
	logger    *zap.Logger
}

func newCLI(out io.Writer) *cli {
	return &cli{out: out, systemEnv: true}
}

func (c *cli) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "cartctl",
		Short:         "Inspect and edit device carts",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd.Context())
		},
	}
	root.SetOut(c.out)

	flags := root.PersistentFlags()
	flags.StringVar(&c.device, "device", "", "device id owning the cart")
	flags.StringVar(&c.store, "store", "", "cart store backend (memory, firestore, gcs); defaults to STOREFRONT_CART_BACKEND")
	flags.StringVar(&c.locale, "locale", "", "message locale (es-AR, en)")
	flags.StringVar(&c.envFile, "env-file", ".env", "dotenv file with STOREFRONT_* overrides")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log diagnostics to stderr")
	_ = root.MarkPersistentFlagRequired("device")

	root.AddCommand(
		c.showCmd(),
		c.addCmd(),
		c.qtyCmd(),
		c.rmCmd(),
		c.clearCmd(),
		c.totalCmd(),
		c.checkoutCmd(),
	)
	return root
}

func (c *cli) init(ctx context.Context) error {
	if strings.TrimSpace(c.device) == "" {
		return errors.New("--device is required")
	}
	if c.container != nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := observability.NewConsoleLogger(c.verbose)
	if err != nil {
		return fmt.Errorf("initialise logger: %w", err)
	}
	c.logger = logger

	c.resolver, err = secrets.NewResolver(ctx,
		secrets.WithProject(os.Getenv("STOREFRONT_FIREBASE_PROJECT_ID")),
		secrets.WithLogger(logger.Named("secrets")),
	)
	if err != nil {
		return fmt.Errorf("initialise secret resolver: %w", err)
	}

	env := make(map[string]string, len(c.env)+2)
	for key, value := range c.env {
		env[key] = value
	}
	if c.store != "" {
		env["STOREFRONT_CART_BACKEND"] = c.store
	}
	if c.locale != "" {
		env["STOREFRONT_LOCALE"] = c.locale
	}
	opts := []config.Option{
		config.WithEnvFile(c.envFile),
		config.WithEnvMap(env),
		config.WithSecretResolver(c.resolver),
	}
	if !c.systemEnv {
		opts = append(opts, config.WithoutSystemEnv())
	}

	cfg, err := config.Load(ctx, opts...)
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			return fmt.Errorf("invalid configuration: %s", strings.Join(validation.Fields(), ", "))
		}
		return err
	}

	c.container, err = di.NewContainer(ctx, cfg, di.WithLogger(logger.Named("cartctl")))
	if err != nil {
		return err
	}
	return nil
}

func (c *cli) close() {
	if c.container != nil {
		if err := c.container.Close(context.Background()); err != nil && c.logger != nil {
			c.logger.Warn("container close error", zap.Error(err))
		}
		c.container = nil
	}
	if c.resolver != nil {
		_ = c.resolver.Close()
		c.resolver = nil
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

// ctx carries the configured locale so service messages come back translated.
func (c *cli) ctx(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return requestctx.WithLocale(ctx, c.container.Config.Locale)
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the cart lines and totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := c.ctx(cmd)
			view, err := c.container.Services.Cart.Get(ctx, c.device)
			if err != nil {
				return err
			}
			c.printCart(ctx, view)
			return nil
		},
	}
}

func (c *cli) addCmd() *cobra.Command {
	var (
		size     string
		quantity int
		color    string
	)
	cmd := &cobra.Command{
		Use:   "add <productId>",
		Short: "Add a product in a size, merging with an existing line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.ctx(cmd)
			view, err := c.container.Services.Cart.AddItem(ctx, services.AddCartItemCommand{
				DeviceID:  c.device,
				ProductID: args[0],
				Size:      size,
				Quantity:  quantity,
				Color:     color,
			})
			if err != nil {
				return err
			}
			c.printCart(ctx, view)
			return nil
		},
	}
	cmd.Flags().StringVar(&size, "size", "", "size to order")
	cmd.Flags().IntVar(&quantity, "qty", 1, "units to add")
	cmd.Flags().StringVar(&color, "color", "", "optional color label")
	return cmd
}

func (c *cli) qtyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "qty <itemId> <quantity>",
		Short: "Replace the quantity of a cart line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity must be an integer: %q", args[1])
			}
			ctx := c.ctx(cmd)
			view, err := c.container.Services.Cart.SetQuantity(ctx, services.SetCartQuantityCommand{
				DeviceID: c.device,
				ItemID:   args[0],
				Quantity: quantity,
			})
			if err != nil {
				return err
			}
			c.printCart(ctx, view)
			return nil
		},
	}
}

func (c *cli) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <itemId>",
		Short: "Remove a cart line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.ctx(cmd)
			view, err := c.container.Services.Cart.Remove(ctx, c.device, args[0])
			if err != nil {
				return err
			}
			c.printCart(ctx, view)
			return nil
		},
	}
}

func (c *cli) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := c.ctx(cmd)
			view, err := c.container.Services.Cart.Clear(ctx, c.device)
			if err != nil {
				return err
			}
			c.printCart(ctx, view)
			return nil
		},
	}
}

func (c *cli) totalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "total",
		Short: "Print subtotal, shipping and total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := c.ctx(cmd)
			view, err := c.container.Services.Cart.Get(ctx, c.device)
			if err != nil {
				return err
			}
			c.printSummary(ctx, view.Summary)
			return nil
		},
	}
}

func (c *cli) checkoutCmd() *cobra.Command {
	values := make(map[string]*string, len(domain.CheckoutFields))
	var clearCart bool

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Validate the checkout form and confirm the purchase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := c.ctx(cmd)
			view, err := c.container.Services.Cart.Get(ctx, c.device)
			if err != nil {
				return err
			}

			session := services.NewCheckoutSession(
				services.WithValidator(services.NewCheckoutValidator(c.container.Localizer)),
				services.WithSessionTotal(view.Summary.Total),
				services.WithSessionDevice(c.device),
			)
			for _, field := range domain.CheckoutFields {
				if cmd.Flags().Changed(flagName(field)) {
					session.Change(field, *values[field])
				}
			}

			result, err := c.container.Services.Checkout.Submit(ctx, services.SubmitCheckoutCommand{
				DeviceID:  c.device,
				Form:      session.Form(),
				ClearCart: clearCart,
			})
			if err != nil {
				return err
			}
			if result.State != services.CheckoutStateConfirmed {
				fmt.Fprintln(c.out, result.Message)
				for _, field := range result.Errors.Fields() {
					fmt.Fprintf(c.out, "  %s: %s\n", field, result.Errors[field])
				}
				return errCheckoutRejected
			}

			if confirmation := result.Confirmation; confirmation != nil {
				fmt.Fprintf(c.out, "checkout %s confirmed\n", confirmation.ID)
				fmt.Fprintf(c.out, "total %s\n", c.container.Formatter.Format(ctx, confirmation.Total))
			}
			return nil
		},
	}

	for _, field := range domain.CheckoutFields {
		value := new(string)
		values[field] = value
		cmd.Flags().StringVar(value, flagName(field), "", "checkout "+field)
	}
	cmd.Flags().BoolVar(&clearCart, "clear-cart", false, "empty the cart after a confirmed checkout")
	return cmd
}

// flagName turns a camelCase form field into a kebab-case flag.
func flagName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *cli) printCart(ctx context.Context, view services.CartView) {
	if view.Cart.Len() == 0 {
		fmt.Fprintln(c.out, "cart is empty")
	} else {
		tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ITEM\tNAME\tSIZE\tQTY\tPRICE\tLINE")
		for _, item := range view.Cart.Items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
				item.ID,
				item.Name,
				item.Size,
				item.Quantity,
				c.container.Formatter.Format(ctx, item.UnitPrice),
				c.container.Formatter.Format(ctx, item.Subtotal()),
			)
		}
		_ = tw.Flush()
	}
	c.printSummary(ctx, view.Summary)
}

func (c *cli) printSummary(ctx context.Context, summary services.CartSummary) {
	f := c.container.Formatter
	fmt.Fprintf(c.out, "subtotal %s\n", f.Format(ctx, summary.Subtotal))
	fmt.Fprintf(c.out, "shipping %s\n", f.FormatShipping(ctx, summary))
	fmt.Fprintf(c.out, "total %s\n", f.Format(ctx, summary.Total))
}
