package scraper

import (
	"context"
	"strings"
	"time"
)

// fakeSession scripts browser behavior for tests. Pages are keyed by
// URL; script results default to true so text-clicks succeed unless a
// substring is listed in scriptFalse.
type fakeSession struct {
	currentURL  string
	urlOverride string
	pages       map[string]string
	titles      map[string]string
	waitErr     map[string]error
	scriptFalse []string
	scriptErr   map[string]error

	navigated   []string
	clicked     []string
	typed       map[string]string
	scripts     []string
	screenshots []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		pages:   make(map[string]string),
		titles:  make(map[string]string),
		waitErr: make(map[string]error),
		typed:   make(map[string]string),
	}
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.currentURL = url
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeSession) WaitReady(_ context.Context, sel string, _ time.Duration) error {
	return f.waitErr[sel]
}

func (f *fakeSession) WaitVisible(_ context.Context, sel string, _ time.Duration) error {
	return f.waitErr[sel]
}

func (f *fakeSession) Click(_ context.Context, sel string) error {
	f.clicked = append(f.clicked, sel)
	return nil
}

func (f *fakeSession) SendKeys(_ context.Context, sel, value string) error {
	f.typed[sel] = value
	return nil
}

func (f *fakeSession) ExecuteScript(_ context.Context, expr string, out interface{}) error {
	f.scripts = append(f.scripts, expr)
	for sub, err := range f.scriptErr {
		if strings.Contains(expr, sub) {
			return err
		}
	}
	if b, ok := out.(*bool); ok {
		*b = true
		for _, sub := range f.scriptFalse {
			if strings.Contains(expr, sub) {
				*b = false
			}
		}
	}
	return nil
}

func (f *fakeSession) PageSource(_ context.Context) (string, error) {
	return f.pages[f.currentURL], nil
}

func (f *fakeSession) CurrentURL(_ context.Context) (string, error) {
	if f.urlOverride != "" {
		return f.urlOverride, nil
	}
	return f.currentURL, nil
}

func (f *fakeSession) Title(_ context.Context) (string, error) {
	return f.titles[f.currentURL], nil
}

func (f *fakeSession) Screenshot(_ context.Context, path string) {
	f.screenshots = append(f.screenshots, path)
}

func (f *fakeSession) ranScript(sub string) bool {
	for _, s := range f.scripts {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
