// Package sentinel2 fetches recent Sentinel-2 true-color imagery from the
// public sentinel-cogs bucket on AWS S3.
package sentinel2

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	defaultEndpoint = "s3.us-west-2.amazonaws.com"
	bucketName      = "sentinel-cogs"

	// Revisit time for Sentinel-2 over Hawaii is around five days, so
	// scanning every third day over a month finds a tile when one exists.
	scanWindowDays = 30
	scanStepDays   = 3

	cacheExpiry = 7 * 24 * time.Hour
	maxTileSize = 32 << 20
)

// tileStore abstracts the object reads so the scan logic is testable
// without S3.
type tileStore interface {
	ReadObject(ctx context.Context, key string) ([]byte, error)
	Ping(ctx context.Context) error
}

type s3Store struct {
	client *minio.Client
}

func (s *s3Store) ReadObject(ctx context.Context, key string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer object.Close()

	data, err := io.ReadAll(io.LimitReader(object, maxTileSize))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty object %s", key)
	}
	return data, nil
}

func (s *s3Store) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, bucketName)
	return err
}

// Client resolves a coordinate to a UTM tile and scans recent acquisition
// dates for a readable true-color image. Fetched tiles are cached in memory
// because a demo session hits the same handful of coordinates repeatedly.
type Client struct {
	store  tileStore
	clock  clockwork.Clock
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]cachedTile
}

type cachedTile struct {
	data      []byte
	tileDate  string
	fetchedAt time.Time
}

type Options struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Clock           clockwork.Clock
	Logger          *slog.Logger
}

func New(options Options) (*Client, error) {
	endpoint := options.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	region := options.Region
	if region == "" {
		region = "us-west-2"
	}

	// The bucket allows anonymous reads; static credentials are only
	// needed when an operator routes through a private mirror.
	creds := credentials.NewStaticV4(options.AccessKeyID, options.SecretAccessKey, "")

	s3, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: true,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return newWithStore(&s3Store{client: s3}, options), nil
}

func newWithStore(store tileStore, options Options) *Client {
	clock := options.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		store:  store,
		clock:  clock,
		logger: logger,
		cache:  make(map[string]cachedTile),
	}
}

// FetchTile returns the most recent true-color tile covering the coordinate
// along with its acquisition date. The scan walks backward from today in
// three-day steps until an object is readable.
func (c *Client) FetchTile(ctx context.Context, lat, lon float64) ([]byte, string, error) {
	tile := utmTileID(lat, lon)
	now := c.clock.Now().UTC()

	if data, date, ok := c.cached(tile, now); ok {
		return data, date, nil
	}

	var lastErr error
	for daysAgo := 0; daysAgo < scanWindowDays; daysAgo += scanStepDays {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		date := now.AddDate(0, 0, -daysAgo)
		key := objectKey(tile, date)

		data, err := c.store.ReadObject(ctx, key)
		if err != nil {
			lastErr = err
			continue
		}

		tileDate := date.Format("2006-01-02")
		c.storeTile(tile, data, tileDate, now)
		c.logger.Info("satellite tile fetched",
			"tile", tile,
			"tile_date", tileDate,
			"bytes", len(data),
		)
		return data, tileDate, nil
	}
	return nil, "", fmt.Errorf("no tile for %s in last %d days: %w", tile, scanWindowDays, lastErr)
}

// Probe implements the health check used by the system-status endpoint.
func (c *Client) Probe(ctx context.Context) error {
	return c.store.Ping(ctx)
}

func (c *Client) cached(tile string, now time.Time) ([]byte, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[tile]
	if !ok || now.Sub(entry.fetchedAt) > cacheExpiry {
		return nil, "", false
	}
	return entry.data, entry.tileDate, true
}

func (c *Client) storeTile(tile string, data []byte, tileDate string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[tile] = cachedTile{data: data, tileDate: tileDate, fetchedAt: now}
}

// utmTileID maps a Hawaiian coordinate to its Sentinel-2 military grid tile.
// The islands straddle UTM zones 59Q and 60Q; three tiles cover the
// populated areas.
func utmTileID(lat, lon float64) string {
	switch {
	case lon < -156.5:
		return "59QCH"
	case lon < -156.0:
		return "59QCK"
	default:
		return "59QDH"
	}
}

// objectKey builds the COG archive path for a tile and acquisition date.
// Layout: sentinel-s2-l2a-cogs/{zone}/{band}/{grid}/{yyyy}/{mm}/{dd}/0/TCI.tif
func objectKey(tile string, date time.Time) string {
	zone := tile[:2]
	band := tile[2:3]
	grid := tile[3:]
	return fmt.Sprintf("sentinel-s2-l2a-cogs/%s/%s/%s/%04d/%02d/%02d/0/TCI.tif",
		zone, band, grid, date.Year(), int(date.Month()), date.Day())
}
