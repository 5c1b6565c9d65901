package cart

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Status values reported by cart operations.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Line is one cart row as scraped from the retailer page.
type Line struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

// Result is the outcome of a cart operation. ClipPath, when set, names a
// screenshot of the final page state under the clips directory.
type Result struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Items    []Line `json:"items,omitempty"`
	ClipPath string `json:"clip_path,omitempty"`
}

// selector chains tried in order when adding an item. Retailer markup
// shifts between page variants, so each known variant gets an entry.
var addToCartSelectors = []string{
	"button[aria-label*='Add to shopping bag']",
	"button[aria-label*='Add to bag']",
	".pip-buy-module__buttons button[type='button']",
	"button.pip-btn--emphasised",
}

const (
	consentSelector = "#onetrust-accept-btn-handler"
	removeSelector  = "button[aria-label*='Remove']"
	cartPath        = "/shoppingcart/"

	selectorProbeTimeout = 2 * time.Second
	settleTimeout        = 5 * time.Second
)

// ServiceConfig configures the cart service.
type ServiceConfig struct {
	// BaseURL is the retailer site root, e.g. "https://www.ikea.com/us/en".
	BaseURL string

	// Timeout bounds each full cart operation.
	Timeout time.Duration
}

// Service performs cart operations against the live retailer site. A mutex
// serializes operations: they share one browser profile.
type Service struct {
	browser *Browser
	cfg     ServiceConfig
	logger  *slog.Logger

	mu sync.Mutex
}

// NewService creates a cart service on top of a browser manager.
func NewService(browser *Browser, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{browser: browser, cfg: cfg, logger: logger.With("component", "cart_service")}
}

// Add opens the product page and clicks through the add-to-bag flow.
func (s *Service) Add(ctx context.Context, productURL, name, price string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.logger.With("op", "add", "product", name, "price", price)
	logger.Info("adding item to cart", "url", productURL)

	page, err := s.browser.NewPage(ctx, productURL, s.cfg.Timeout)
	if err != nil {
		return Result{Status: StatusError, Message: err.Error()}, err
	}
	defer page.Close()

	s.dismissConsent(page)

	if err := s.clickAddButton(page); err != nil {
		logger.Warn("add button not found", "error", err)
		return Result{Status: StatusError, Message: "could not find the add-to-cart button on the product page"}, err
	}

	// Give the site a moment to register the bag update before snapshotting.
	_ = page.Timeout(settleTimeout).WaitStable(time.Second)
	s.browser.SaveState(page)

	clip, clipErr := s.browser.CaptureClip(page, "add_cart")
	if clipErr != nil {
		logger.Warn("failed to capture clip", "error", clipErr)
	}

	logger.Info("item added to cart")
	return Result{
		Status:   StatusSuccess,
		Message:  fmt.Sprintf("%s has been added to your cart", name),
		ClipPath: clip,
	}, nil
}

// View opens the cart page and scrapes its current contents.
func (s *Service) View(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.logger.With("op", "view")

	page, err := s.browser.NewPage(ctx, s.cfg.BaseURL+cartPath, s.cfg.Timeout)
	if err != nil {
		return Result{Status: StatusError, Message: err.Error()}, err
	}
	defer page.Close()

	s.dismissConsent(page)
	_ = page.Timeout(settleTimeout).WaitStable(time.Second)

	items := s.scrapeItems(page)
	s.browser.SaveState(page)

	clip, clipErr := s.browser.CaptureClip(page, "view_cart")
	if clipErr != nil {
		logger.Warn("failed to capture clip", "error", clipErr)
	}

	logger.Info("cart viewed", "items", len(items))
	return Result{
		Status:   StatusSuccess,
		Message:  fmt.Sprintf("your cart contains %d item(s)", len(items)),
		Items:    items,
		ClipPath: clip,
	}, nil
}

// Remove opens the cart page and clicks the remove button whose label
// matches the item name. Matching is by the name's leading token, which is
// how the retailer labels its remove buttons.
func (s *Service) Remove(ctx context.Context, name string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.logger.With("op", "remove", "product", name)

	page, err := s.browser.NewPage(ctx, s.cfg.BaseURL+cartPath, s.cfg.Timeout)
	if err != nil {
		return Result{Status: StatusError, Message: err.Error()}, err
	}
	defer page.Close()

	s.dismissConsent(page)
	_ = page.Timeout(settleTimeout).WaitStable(time.Second)

	core := strings.ToUpper(coreToken(name))
	buttons, err := page.Elements(removeSelector)
	if err != nil || len(buttons) == 0 {
		logger.Warn("no remove buttons found", "error", err)
		return Result{Status: StatusError, Message: "the cart page shows no removable items"}, nil
	}

	for _, btn := range buttons {
		label, err := btn.Attribute("aria-label")
		if err != nil || label == nil {
			continue
		}
		if !strings.Contains(strings.ToUpper(*label), core) {
			continue
		}
		if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
			logger.Warn("remove click failed", "error", err)
			return Result{Status: StatusError, Message: "clicking the remove button failed"}, err
		}
		_ = page.Timeout(settleTimeout).WaitStable(time.Second)
		s.browser.SaveState(page)

		clip, clipErr := s.browser.CaptureClip(page, "remove_cart")
		if clipErr != nil {
			logger.Warn("failed to capture clip", "error", clipErr)
		}
		logger.Info("item removed from cart")
		return Result{
			Status:   StatusSuccess,
			Message:  fmt.Sprintf("%s has been removed from your cart", name),
			ClipPath: clip,
		}, nil
	}

	logger.Warn("item not found among remove buttons")
	return Result{Status: StatusError, Message: fmt.Sprintf("could not find %q in the cart page", name)}, nil
}

// Close releases the underlying browser.
func (s *Service) Close() error {
	return s.browser.Close()
}

func (s *Service) dismissConsent(page *rod.Page) {
	el, err := page.Timeout(selectorProbeTimeout).Element(consentSelector)
	if err != nil {
		return
	}
	_ = el.Click(proto.InputMouseButtonLeft, 1)
}

func (s *Service) clickAddButton(page *rod.Page) error {
	for _, sel := range addToCartSelectors {
		el, err := page.Timeout(selectorProbeTimeout).Element(sel)
		if err != nil {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			continue
		}
		return nil
	}
	// Last resort: match the button by its visible text.
	el, err := page.Timeout(selectorProbeTimeout).ElementR("button", "/add to (shopping )?bag/i")
	if err != nil {
		return fmt.Errorf("no add-to-cart button matched: %w", err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (s *Service) scrapeItems(page *rod.Page) []Line {
	buttons, err := page.Elements(removeSelector)
	if err != nil {
		s.logger.Warn("failed to scrape cart items", "error", err)
		return nil
	}
	var items []Line
	for _, btn := range buttons {
		label, err := btn.Attribute("aria-label")
		if err != nil || label == nil {
			continue
		}
		name := strings.TrimSpace(strings.TrimPrefix(*label, "Remove"))
		if name == "" {
			continue
		}
		items = append(items, Line{Name: name})
	}
	return items
}

// coreToken is the leading word of a product name, the stable piece the
// retailer repeats in remove-button labels.
func coreToken(name string) string {
	head := strings.TrimSpace(strings.Split(name, ",")[0])
	fields := strings.Fields(head)
	if len(fields) == 0 {
		return name
	}
	return fields[0]
}
