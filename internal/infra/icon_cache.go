package infra

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// DefaultIconURL is the CoinCap CDN pattern; %s is the lower-case symbol.
const DefaultIconURL = "https://assets.coincap.io/assets/icons/%s@2x.png"

const iconSize = 24

// IconCache downloads coin icons once, stores them resized on disk, and derives
// an accent colour per symbol for the summary cards.
type IconCache struct {
	basePath string
	urlFmt   string
	client   *http.Client

	mu      sync.Mutex
	accents map[string]string
}

// NewIconCache creates the cache rooted at dir. An empty dir uses the user config directory.
func NewIconCache(dir string) (*IconCache, error) {
	if dir == "" {
		path, err := getAssetsPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve assets path: %w", err)
		}
		dir = path
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create assets directory: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxConnsPerHost = 10
	transport.IdleConnTimeout = 30 * time.Second

	return &IconCache{
		basePath: dir,
		urlFmt:   DefaultIconURL,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
		accents: make(map[string]string),
	}, nil
}

// SetSource overrides the icon URL pattern (one %s for the symbol).
func (c *IconCache) SetSource(urlFmt string) { c.urlFmt = urlFmt }

// Fetch downloads the icon for symbol unless it is already on disk and returns its path.
// Images are resized to 24x24.
func (c *IconCache) Fetch(ctx context.Context, symbol string) (string, error) {
	safe := sanitizeSymbol(symbol)
	if safe == "" {
		return "", fmt.Errorf("invalid symbol: %s", symbol)
	}

	filePath := c.path(safe)
	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil
	}

	url := fmt.Sprintf(c.urlFmt, strings.ToLower(safe))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	src, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	resized := imaging.Resize(src, iconSize, iconSize, imaging.Lanczos)
	if err := imaging.Save(resized, filePath); err != nil {
		return "", fmt.Errorf("failed to save resized image: %w", err)
	}
	return filePath, nil
}

// Warm fetches icons for symbols concurrently and precomputes their accents.
// Failures are logged and skipped.
func (c *IconCache) Warm(ctx context.Context, symbols []string) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, 4)

	for _, sym := range symbols {
		if _, ok := c.Accent(sym); ok {
			continue
		}
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			if _, err := c.Fetch(ctx, sym); err != nil {
				slog.Debug("Icon fetch failed", slog.String("symbol", sym), slog.Any("error", err))
				return
			}
			c.Accent(sym)
		}(sym)
	}
	wg.Wait()
}

// Accent returns the icon's mean colour as #rrggbb. ok is false until the icon is on disk.
func (c *IconCache) Accent(symbol string) (string, bool) {
	safe := sanitizeSymbol(symbol)
	if safe == "" {
		return "", false
	}
	key := strings.ToLower(safe)

	c.mu.Lock()
	hex, ok := c.accents[key]
	c.mu.Unlock()
	if ok {
		return hex, true
	}

	img, err := imaging.Open(c.path(safe))
	if err != nil {
		return "", false
	}

	// A 1x1 box resample is the mean of every pixel.
	px := imaging.Resize(img, 1, 1, imaging.Box).NRGBAAt(0, 0)
	hex = hexColor(px)

	c.mu.Lock()
	c.accents[key] = hex
	c.mu.Unlock()
	return hex, true
}

func (c *IconCache) path(safeSymbol string) string {
	return filepath.Join(c.basePath, strings.ToLower(safeSymbol)+".png")
}

func hexColor(px color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", px.R, px.G, px.B)
}

func getAssetsPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "CryptoDash", "assets", "icons"), nil
}

func sanitizeSymbol(symbol string) string {
	res := make([]rune, 0, len(symbol))
	for _, r := range symbol {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			res = append(res, r)
		}
	}
	return string(res)
}
