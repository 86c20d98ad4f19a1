// Package scraper drives a browser session through the Threads site:
// authentication, scroll-driven collection, and profile assembly.
package scraper

import (
	"context"
	"time"
)

// Session is the browser capability the scraper needs. browser.Session
// satisfies it; tests substitute a scripted fake.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitReady(ctx context.Context, sel string, timeout time.Duration) error
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	Click(ctx context.Context, sel string) error
	SendKeys(ctx context.Context, sel, value string) error
	ExecuteScript(ctx context.Context, expr string, out interface{}) error
	PageSource(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string)
}
