// Command baidu runs one-off Baidu Map lookups from the command line and
// prints the results as JSON.
//
// Usage:
//
//	baidu geocode -address 上地十街10号 -city 北京
//	baidu reverse -location 39.983424,116.322987 -pois
//	baidu search -query 购物 -bounds 38.76623,116.43213,39.54321,116.46773 -recursive
//
// The access key is read from -ak or BAIDU_AK (a .env file is honored).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/baidu-place-harvester/internal/adapter/baidu"
	"github.com/couchcryptid/baidu-place-harvester/internal/domain"
	"github.com/couchcryptid/baidu-place-harvester/internal/observability"
)

const usage = `usage: baidu <geocode|reverse|search> [flags]

Run "baidu <command> -h" for the flags of a command.
`

func main() {
	_ = godotenv.Load(".env")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "baidu:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	switch args[0] {
	case "geocode":
		return runGeocode(ctx, args[1:], out)
	case "reverse":
		return runReverse(ctx, args[1:], out)
	case "search":
		return runSearch(ctx, args[1:], out)
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

// commonFlags are shared by every subcommand.
type commonFlags struct {
	ak       string
	host     string
	scheme   string
	timeout  time.Duration
	proxy    string
	logLevel string
}

func newFlagSet(name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c := &commonFlags{}
	fs.StringVar(&c.ak, "ak", os.Getenv("BAIDU_AK"), "Baidu access key")
	fs.StringVar(&c.host, "host", baidu.DefaultHost, "API host")
	fs.StringVar(&c.scheme, "scheme", baidu.DefaultScheme, "http or https")
	fs.DurationVar(&c.timeout, "timeout", baidu.DefaultTimeout, "per-request timeout")
	fs.StringVar(&c.proxy, "proxy", "", "HTTP proxy URL")
	fs.StringVar(&c.logLevel, "log-level", "warn", "debug, info, warn, or error")
	return fs, c
}

func (c *commonFlags) client() (*baidu.Client, error) {
	logger := observability.NewLogger(c.logLevel, "text")
	return baidu.NewClient(baidu.Config{
		AccessKey: c.ak,
		Host:      c.host,
		Scheme:    c.scheme,
		Timeout:   c.timeout,
		ProxyURL:  c.proxy,
	}, logger, observability.NewUnregisteredMetrics())
}

func runGeocode(ctx context.Context, args []string, out io.Writer) error {
	fs, common := newFlagSet("geocode")
	address := fs.String("address", "", "address to geocode")
	city := fs.String("city", "", "restrict results to this city")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := common.client()
	if err != nil {
		return err
	}
	loc, err := c.Geocode(ctx, *address, *city)
	if err != nil {
		return err
	}
	return writeResult(out, loc)
}

func runReverse(ctx context.Context, args []string, out io.Writer) error {
	fs, common := newFlagSet("reverse")
	location := fs.String("location", "", `point as "lat,lon"`)
	coordType := fs.String("coordtype", string(domain.CoordBD09), "bd09ll, gcj02ll, or wgs84ll")
	pois := fs.Bool("pois", false, "include nearby points of interest")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := common.client()
	if err != nil {
		return err
	}
	res, err := c.ReverseString(ctx, *location, domain.ReverseOptions{
		CoordType:   domain.CoordType(*coordType),
		IncludePOIs: *pois,
	})
	if err != nil {
		return err
	}
	return writeResult(out, res)
}

func runSearch(ctx context.Context, args []string, out io.Writer) error {
	fs, common := newFlagSet("search")
	query := fs.String("query", "", "search keyword")
	region := fs.String("region", "", "city or region name")
	bounds := fs.String("bounds", "", `rectangle as "swLat,swLng,neLat,neLng"`)
	around := fs.String("around", "", `circle center as "lat,lon"; needs -radius`)
	radius := fs.Int("radius", 1000, "circle radius in meters")
	tag := fs.String("tag", "", "category tag")
	scope := fs.Int("scope", baidu.DefaultScope, "1 for basic fields, 2 for details")
	pageSize := fs.Int("page-size", baidu.DefaultPageSize, "results per page, at most 20")
	page := fs.Int("page", 0, "first page to fetch")
	recursive := fs.Bool("recursive", false, "fetch every page, only with -page 0")
	limit := fs.Int("limit", 0, "stop after this many places; 0 means no limit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter, err := searchFilter(*region, *bounds, *around, *radius)
	if err != nil {
		return err
	}
	c, err := common.client()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	n := 0
	for p, err := range c.PlaceSearch(ctx, baidu.PlaceQuery{
		Query:     *query,
		Filter:    filter,
		Tag:       *tag,
		Scope:     *scope,
		PageSize:  *pageSize,
		StartPage: *page,
		Recursive: *recursive,
	}) {
		if err != nil {
			return err
		}
		if err := enc.Encode(p); err != nil {
			return err
		}
		n++
		if *limit > 0 && n >= *limit {
			break
		}
	}
	return nil
}

func searchFilter(region, bounds, around string, radius int) (baidu.RegionFilter, error) {
	set := 0
	for _, s := range []string{region, bounds, around} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return baidu.RegionFilter{}, errors.New("exactly one of -region, -bounds, or -around is required")
	}
	switch {
	case bounds != "":
		return baidu.ParseBounds(bounds)
	case around != "":
		center, err := domain.ParsePoint(around)
		if err != nil {
			return baidu.RegionFilter{}, err
		}
		return baidu.Around(center, radius), nil
	}
	return baidu.InRegion(region), nil
}

// writeResult prints v as indented JSON, or null when the provider found nothing.
func writeResult(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
