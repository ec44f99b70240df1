package render

import (
	"context"
	"sync"
	"time"

	"prelabel/internal/logger"

	"github.com/cockroachdb/errors"
	"github.com/playwright-community/playwright-go"
)

// collectNodes returns {xpath, text} for every element under <body>.
const collectNodes = `() => {
    function getXPath(e) {
        if (e.id) return '//*[@id="' + e.id + '"]';
        if (e === document.body) return '/html/body';
        let ix = 1;
        const siblings = e.parentNode ? e.parentNode.childNodes : [];
        for (let i = 0; i < siblings.length; i++) {
            const s = siblings[i];
            if (s === e) return getXPath(e.parentNode) + '/' + e.tagName.toLowerCase() + '[' + ix + ']';
            if (s.nodeType === 1 && s.tagName === e.tagName) ix++;
        }
        return '';
    }
    return Array.from(document.querySelectorAll('body *')).map(el => ({
        xpath: getXPath(el),
        text: el.textContent || '',
    }));
}`

// Playwright renders markup in headless Chromium so that the node text
// matches what an annotator sees. The browser is started on first use and
// shared by all renders; each render gets its own page.
type Playwright struct {
	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	log     *logger.Logger
}

func NewPlaywright() *Playwright {
	return &Playwright{log: logger.New("Renderer")}
}

func (p *Playwright) ensureBrowser() (playwright.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.browser != nil && p.browser.IsConnected() {
		return p.browser, nil
	}
	if p.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			p.log.LogErrorf("Failed to start Playwright: %v", err)
			return nil, errors.Wrap(err, "playwright initialization failed")
		}
		p.pw = pw
	}
	browser, err := p.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-gpu",
		},
	})
	if err != nil {
		p.log.LogErrorf("Failed to launch browser: %v", err)
		return nil, errors.Wrap(err, "browser launch failed")
	}
	p.browser = browser
	return browser, nil
}

func (p *Playwright) Render(ctx context.Context, markup string) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	browser, err := p.ensureBrowser()
	if err != nil {
		return nil, err
	}
	page, err := browser.NewPage()
	if err != nil {
		return nil, errors.Wrap(err, "open page")
	}
	defer page.Close()

	if deadline, ok := ctx.Deadline(); ok {
		page.SetDefaultTimeout(float64(time.Until(deadline).Milliseconds()))
	}
	if err := page.SetContent(markup, playwright.PageSetContentOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, errors.Wrap(err, "set content")
	}
	result, err := page.Evaluate(collectNodes)
	if err != nil {
		return nil, errors.Wrap(err, "collect nodes")
	}
	arr, ok := result.([]interface{})
	if !ok {
		return nil, nil
	}
	nodes := make([]Node, 0, len(arr))
	for _, v := range arr {
		m, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		xpath, _ := m["xpath"].(string)
		text, _ := m["text"].(string)
		if xpath == "" {
			continue
		}
		nodes = append(nodes, Node{NodeID: labelStudioPath(xpath), Text: text})
	}
	return nodes, nil
}

// Close shuts down the browser and the Playwright driver.
func (p *Playwright) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.browser != nil {
		errs = append(errs, p.browser.Close())
		p.browser = nil
	}
	if p.pw != nil {
		errs = append(errs, p.pw.Stop())
		p.pw = nil
	}
	return errors.Join(errs...)
}
