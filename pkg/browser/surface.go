// Package browser presents 3ds challenges in a dedicated Chrome window.
package browser

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"ykjam/cardpay/pkg"
)

// Surface opens each challenge in a fresh browser profile and watches for
// the gateway redirecting to the return url.
type Surface struct {
	returnURL *url.URL
	headless  bool
}

func NewSurface(returnURL string, headless bool) (*Surface, error) {
	u, err := url.Parse(returnURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid return url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("return url must be absolute, got %q", returnURL)
	}
	return &Surface{returnURL: u, headless: headless}, nil
}

type presentation struct {
	once      sync.Once
	dismissed chan struct{}
	cancel    func()
}

func (p *presentation) Dismiss() {
	p.once.Do(func() {
		p.cancel()
		close(p.dismissed)
	})
}

func (p *presentation) Dismissed() <-chan struct{} {
	return p.dismissed
}

func (s *Surface) Open(ctx context.Context, challengeURL string, onSignal pkg.SignalFunc) (pkg.Presentation, error) {
	clog := log.WithFields(log.Fields{
		"operation": "Browser Challenge",
		"headless":  s.headless,
	})

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.headless),
		chromedp.Flag("incognito", true),
		chromedp.WindowSize(480, 800),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	bctx, bcancel := chromedp.NewContext(allocCtx)
	p := &presentation{
		dismissed: make(chan struct{}),
		cancel: func() {
			bcancel()
			allocCancel()
		},
	}

	var signalOnce sync.Once
	chromedp.ListenTarget(bctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *network.EventRequestWillBeSent:
			status, message, ok := ParseReturnURL(s.returnURL, ev.Request.URL)
			if !ok {
				return
			}
			signalOnce.Do(func() {
				clog.WithField("status", status).Info("return url reached")
				go onSignal(status, message)
			})
		case *inspector.EventDetached:
			clog.WithField("reason", ev.Reason).Warn("challenge page detached")
			go p.Dismiss()
		}
	})

	if err := chromedp.Run(bctx, network.Enable()); err != nil {
		p.Dismiss()
		eMsg := "error starting browser"
		clog.WithError(err).Error(eMsg)
		return nil, errors.Wrap(err, eMsg)
	}

	if c := chromedp.FromContext(bctx); c != nil && c.Target != nil {
		tid := c.Target.TargetID
		chromedp.ListenBrowser(bctx, func(ev interface{}) {
			if ev, ok := ev.(*target.EventTargetDestroyed); ok && ev.TargetID == tid {
				clog.Warn("challenge window closed")
				go p.Dismiss()
			}
		})
	}

	go func() {
		err := chromedp.Run(bctx, chromedp.Navigate(challengeURL))
		// the return url rarely resolves; a navigation error after the
		// redirect was seen is expected
		if err != nil && bctx.Err() == nil {
			clog.WithError(err).Debug("navigation ended with error")
		}
	}()
	go func() {
		<-bctx.Done()
		p.Dismiss()
	}()
	return p, nil
}

// ParseReturnURL reports whether raw points at the return url and, if so,
// the status and message query parameters the gateway appended.
func ParseReturnURL(returnURL *url.URL, raw string) (status, message string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", false
	}
	if !strings.EqualFold(u.Scheme, returnURL.Scheme) || !strings.EqualFold(u.Host, returnURL.Host) {
		return "", "", false
	}
	if strings.TrimRight(u.Path, "/") != strings.TrimRight(returnURL.Path, "/") {
		return "", "", false
	}
	q := u.Query()
	return q.Get("status"), q.Get("message"), true
}
