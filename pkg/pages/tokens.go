package pages

import (
	"context"
	"strconv"
	"time"

	"github.com/vango-dev/synthdesk/internal/config"
	"github.com/vango-dev/synthdesk/pkg/component"
	"github.com/vango-dev/synthdesk/pkg/storage"
	"github.com/vango-dev/synthdesk/pkg/vdom"
)

// Tokens shows token usage. Fresh figures are cached in the client
// store so the page still renders when the API is unreachable.
type Tokens struct {
	component.NopHooks
	env  Env
	live live
	now  func() time.Time
}

func (p *Tokens) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

func (p *Tokens) Render(ctx context.Context, c *component.Instance) (*vdom.VNode, error) {
	api := p.env.API()
	now := p.clock()

	var (
		usage   storage.UsageSnapshot
		offline bool
		stale   bool
	)
	payload, err := fetch(ctx, p.env, config.EndpointTokenUsage, nil)
	if err == nil {
		m, _ := payload.(map[string]any)
		usage = usageFrom(m, now)
		if serr := storage.SaveUsage(ctx, api.Store(), usage); serr != nil {
			c.Logger().Warn("usage snapshot not cached", "error", serr)
		}
	} else {
		cached, isStale, ok, lerr := storage.LoadUsage(ctx, api.Store(), now)
		if lerr != nil || !ok {
			return nil, err
		}
		usage, stale, offline = cached, isStale, true
	}

	if live, ok := p.env.Bindings().GetData(SourceUsage); ok {
		if used, ok := number(live["used"]); ok {
			usage.Used = used
		}
		if limit, ok := number(live["limit"]); ok {
			usage.Limit = limit
		}
	}

	return vdom.Section(
		vdom.Class("tokens"),
		header("Tokens"),
		vdom.If(offline, vdom.P(vdom.Class("notice"), "Showing usage saved at ", usage.FetchedAt.Format(time.RFC1123), ".")),
		vdom.If(stale, vdom.P(vdom.Class("notice", "notice--warning"), "This period has renewed; figures may be out of date.")),
		vdom.El("dl",
			vdom.El("dt", "Plan"), vdom.El("dd", usage.Plan),
			vdom.El("dt", "Used"), vdom.El("dd", strconv.FormatInt(usage.Used, 10)),
			vdom.El("dt", "Remaining"), vdom.El("dd", strconv.FormatInt(usage.Remaining(), 10)),
			vdom.El("dt", "Renews"), vdom.El("dd", usage.RenewalDate.Format("2 Jan 2006")),
		),
	), nil
}

func (p *Tokens) OnMount(_ context.Context, c *component.Instance) {
	p.live.bind(p.env, c, SourceUsage)
}

func (p *Tokens) OnDestroy(c *component.Instance) {
	p.live.unbind(p.env, c)
}

func usageFrom(m map[string]any, now time.Time) storage.UsageSnapshot {
	u := storage.UsageSnapshot{Plan: field(m, "plan"), FetchedAt: now}
	u.Used, _ = number(m["used"])
	u.Limit, _ = number(m["limit"])
	if raw := field(m, "renewalDate"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			u.RenewalDate = t
		}
	}
	return u
}

func number(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}
