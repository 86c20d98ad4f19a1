package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jhulett18/threadsrecon/pkg/errors"
	"github.com/jhulett18/threadsrecon/pkg/logger"
	"github.com/jhulett18/threadsrecon/pkg/threads"
)

// Fragment selectors mirror the site's current rendering. Class-based
// and brittle; a markup change shows up as empty collections rather
// than failures.
const (
	postFragmentSelector     = "div.x78zum5.xdt5ytf"
	followerFragmentSelector = "div.x78zum5.xdt5ytf.x5kalc8.xl56j7k.xeuugli.x1sxyh0"
)

// ScrollTarget is the surface a collection loop scrolls and reads.
// The profile feed scrolls the document; follower lists scroll a
// container inside a modal dialog.
type ScrollTarget interface {
	ScrollToBottom(ctx context.Context) error
	Fragments(ctx context.Context) (*goquery.Selection, error)
}

type documentTarget struct {
	s        Session
	selector string
}

// NewDocumentTarget returns a ScrollTarget over the main document.
func NewDocumentTarget(s Session, selector string) ScrollTarget {
	return &documentTarget{s: s, selector: selector}
}

func (t *documentTarget) ScrollToBottom(ctx context.Context) error {
	return t.s.ExecuteScript(ctx, "window.scrollTo(0, document.body.scrollHeight);", nil)
}

func (t *documentTarget) Fragments(ctx context.Context) (*goquery.Selection, error) {
	return fragments(ctx, t.s, t.selector)
}

type dialogTarget struct {
	s        Session
	selector string
}

// NewDialogTarget returns a ScrollTarget over the scrollable container
// inside an open modal dialog.
func NewDialogTarget(s Session, selector string) ScrollTarget {
	return &dialogTarget{s: s, selector: selector}
}

func (t *dialogTarget) ScrollToBottom(ctx context.Context) error {
	const script = `(() => {
		const dialog = document.querySelector("div[role='dialog']");
		if (!dialog) { return false; }
		const scrollable = dialog.querySelector("div[class^='xb57i2i']");
		if (!scrollable) { return false; }
		scrollable.scrollTo({ top: scrollable.scrollHeight });
		return true;
	})()`
	var ok bool
	if err := t.s.ExecuteScript(ctx, script, &ok); err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.ErrorTypeMissingElement, "", "dialog scroll container not found")
	}
	return nil
}

func (t *dialogTarget) Fragments(ctx context.Context) (*goquery.Selection, error) {
	return fragments(ctx, t.s, t.selector)
}

func fragments(ctx context.Context, s Session, selector string) (*goquery.Selection, error) {
	src, err := s.PageSource(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	return doc.Find(selector), nil
}

// PaginateOptions controls one collection loop.
type PaginateOptions struct {
	// KeyPrefix names collected entries "post 1", "follower 2", ...
	KeyPrefix string
	// MaxSameCount is how many consecutive unchanged raw element
	// counts mean the feed has converged. Defaults to 3.
	MaxSameCount int
	// Settle is the pause after each scroll before re-reading the page.
	Settle time.Duration
	Log    logger.Logger
}

// Collect scrolls target until the raw fragment count is stable for
// MaxSameCount consecutive iterations, extracting a record from every
// fragment beyond the already-collected count. The stability counter
// re-arms whenever the count changes, so a slow-loading feed that grows
// after a pause keeps collecting. Extractor misses are skipped without
// advancing the key index. A scroll failure ends collection with
// whatever was gathered.
func Collect[T any](ctx context.Context, target ScrollTarget, extract func(*goquery.Selection) (T, bool), opts PaginateOptions) (*threads.Collection[T], error) {
	maxSame := opts.MaxSameCount
	if maxSame <= 0 {
		maxSame = 3
	}

	collected := threads.NewCollection[T]()
	index := 1
	previousCount := 0
	sameCount := 0

	for {
		if err := ctx.Err(); err != nil {
			return collected, err
		}

		if err := target.ScrollToBottom(ctx); err != nil {
			if opts.Log != nil {
				opts.Log.WithError(err).Warn("Scrolling stopped, keeping collected items")
			}
			return collected, nil
		}

		if err := settle(ctx, opts.Settle); err != nil {
			return collected, err
		}

		frags, err := target.Fragments(ctx)
		if err != nil {
			return collected, err
		}

		count := frags.Length()
		for i := collected.Len(); i < count; i++ {
			record, ok := extract(frags.Eq(i))
			if !ok {
				continue
			}
			collected.Put(fmt.Sprintf("%s %d", opts.KeyPrefix, index), record)
			index++
		}

		if opts.Log != nil {
			opts.Log.WithFields(map[string]interface{}{
				"collected": collected.Len(),
				"elements":  count,
			}).Debug("Collection iteration")
		}

		if count == previousCount {
			sameCount++
			if sameCount >= maxSame {
				break
			}
		} else {
			sameCount = 0
		}
		previousCount = count
	}

	return collected, nil
}

func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
