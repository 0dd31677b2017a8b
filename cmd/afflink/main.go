package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/promozone/afflink/internal/affiliate"
	"github.com/promozone/afflink/internal/browser"
	"github.com/promozone/afflink/internal/config"
	"github.com/promozone/afflink/internal/converter"
	"github.com/promozone/afflink/internal/logger"
	"github.com/promozone/afflink/internal/product"
	"github.com/promozone/afflink/pkg/market"
)

var version = "1.0.0"

// flags holds all parsed CLI options.
type flags struct {
	url        string
	configFile string

	list    bool
	check   bool
	info    bool
	probe   bool
	jsonOut bool

	showHelp    bool
	showVersion bool
}

func main() {
	f := parseFlags()

	if f.showVersion {
		fmt.Printf("afflink v%s\n", version)
		os.Exit(0)
	}

	if f.showHelp || (f.url == "" && !f.list && !f.check) {
		printUsage()
		if f.url == "" && !f.list && !f.check && !f.showHelp {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Ensure URL has a scheme
	if f.url != "" && !strings.HasPrefix(f.url, "http://") && !strings.HasPrefix(f.url, "https://") {
		f.url = "https://" + f.url
	}

	cfg, err := config.Load(f.configFile)
	if err != nil {
		fatal("configuration error: %v", err)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fatal("logger setup failed: %v", err)
	}
	defer log.Sync()

	nav := browser.NewRodNavigator(browser.Config{
		Headless:    cfg.Browser.Headless,
		NoSandbox:   cfg.Browser.NoSandbox,
		UserAgent:   cfg.Browser.UserAgent,
		NavTimeout:  cfg.Browser.NavTimeout,
		SettleDelay: cfg.Browser.SettleDelay,
	}, log)

	manager, regs := affiliate.BuildManager(cfg, nav, log)
	ctx := context.Background()

	switch {
	case f.list:
		printRegistrations(regs)

	case f.check:
		checkCredentials(ctx, regs)

	case f.info:
		fetchInfo(ctx, cfg, log, f)

	default:
		convert(ctx, manager, f)
	}
}

func convert(ctx context.Context, manager *affiliate.Manager, f *flags) {
	result := manager.ConvertLink(ctx, f.url)

	if f.jsonOut {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
	} else {
		fmt.Printf("  marketplace: %s\n", result.Marketplace)
		fmt.Printf("  status:      %s\n", result.Status)
		fmt.Printf("  link:        %s\n", result.Link)
		if result.Error != "" {
			fmt.Printf("  error:       %s\n", result.Error)
		}
	}

	if f.probe && result.Status == market.StatusSuccess && result.Marketplace == market.Amazon {
		probeProduct(ctx, manager, result.Link)
	}
}

// probeProduct runs the advisory product-existence check. Whatever it
// reports, the conversion above stands.
func probeProduct(ctx context.Context, manager *affiliate.Manager, link string) {
	conv, ok := manager.Converter(market.Amazon)
	if !ok {
		return
	}
	amazon, ok := conv.(*converter.Amazon)
	if !ok {
		return
	}

	if err := amazon.ValidateProductExists(ctx, link); err != nil {
		fmt.Printf("  probe:       %v\n", err)
	} else {
		fmt.Printf("  probe:       product page reachable\n")
	}
}

func printRegistrations(regs []affiliate.Registration) {
	fmt.Println("\n  Marketplaces:")
	for _, reg := range regs {
		if reg.Active() {
			fmt.Printf("    %-14s active\n", reg.Marketplace)
		} else {
			fmt.Printf("    %-14s unavailable (%v)\n", reg.Marketplace, reg.Err)
		}
	}
	fmt.Println()
}

func checkCredentials(ctx context.Context, regs []affiliate.Registration) {
	fmt.Println("\n  Credential status:")
	for _, reg := range regs {
		if !reg.Active() {
			fmt.Printf("    %-14s not registered\n", reg.Marketplace)
			continue
		}
		valid, err := reg.Converter.ValidateCredentials(ctx)
		switch {
		case err != nil:
			fmt.Printf("    %-14s error: %v\n", reg.Marketplace, err)
		case valid:
			fmt.Printf("    %-14s valid\n", reg.Marketplace)
		default:
			fmt.Printf("    %-14s expired or incomplete\n", reg.Marketplace)
		}
	}
	fmt.Println()
}

func fetchInfo(ctx context.Context, cfg *config.Config, log *zap.Logger, f *flags) {
	scraper := product.NewScraper(cfg.Product.Timeout, cfg.Product.UserAgent, log)
	info, err := scraper.Fetch(ctx, f.url)
	if err != nil {
		fatal("product metadata fetch failed: %v", err)
	}

	if f.jsonOut {
		out, _ := json.MarshalIndent(info, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Printf("  title:  %s\n", info.Title)
	if info.Price != "" {
		fmt.Printf("  price:  %s", info.Price)
		if info.OldPrice != "" {
			fmt.Printf("  (was %s)", info.OldPrice)
		}
		fmt.Println()
	}
	if info.ImageURL != "" {
		fmt.Printf("  image:  %s\n", info.ImageURL)
	}
}

// ---------- Flag parsing ----------

func parseFlags() *flags {
	f := &flags{}

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		next := func() string {
			if i+1 < len(args) {
				i++
				return args[i]
			}
			fatal("flag %s requires an argument", arg)
			return ""
		}

		switch arg {
		case "-u", "--url":
			f.url = next()
		case "--config":
			f.configFile = next()
		case "-l", "--list":
			f.list = true
		case "-c", "--check":
			f.check = true
		case "-i", "--info":
			f.info = true
		case "-p", "--probe":
			f.probe = true
		case "-j", "--json":
			f.jsonOut = true
		case "-h", "--help":
			f.showHelp = true
		case "-V", "--version":
			f.showVersion = true
		default:
			// Treat bare arg as URL if no URL yet
			if !strings.HasPrefix(arg, "-") && f.url == "" {
				f.url = arg
			} else {
				fmt.Fprintf(os.Stderr, "Unknown flag: %s (use --help for usage)\n", arg)
				os.Exit(1)
			}
		}
	}
	return f
}

func printUsage() {
	fmt.Print(`
afflink - marketplace affiliate link converter

USAGE:
  afflink [flags] <url>
  afflink -u https://amazon.com.br/dp/B08N5WRWNW
  afflink --list

TARGET:
  -u,  --url <string>     product URL to convert

ACTIONS:
  -l,  --list             list marketplace converters and availability
  -c,  --check            validate stored credentials per marketplace
  -i,  --info             scrape product metadata instead of converting
  -p,  --probe            after an amazon conversion, probe that the product page exists

OUTPUT:
  -j,  --json             print raw JSON

CONFIG:
       --config <string>  path to configuration file (TOML); AFFLINK_* env vars override

META:
  -h,  --help             show this help message
  -V,  --version          show version

`)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\n  ERROR: %s\n\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
