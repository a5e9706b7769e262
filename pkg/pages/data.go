package pages

import (
	"context"
	"strconv"
	"strings"

	"github.com/vango-dev/synthdesk/internal/config"
	"github.com/vango-dev/synthdesk/pkg/component"
	"github.com/vango-dev/synthdesk/pkg/toast"
	"github.com/vango-dev/synthdesk/pkg/vdom"
)

const defaultRows = 1000

// DataGenerate starts a synthetic-data job for a model.
type DataGenerate struct {
	component.NopHooks
	env Env
}

func (p *DataGenerate) Render(ctx context.Context, c *component.Instance) (*vdom.VNode, error) {
	form := struct {
		Model string `query:"model"`
		Rows  int    `query:"rows"`
	}{Rows: defaultRows}
	if err := bind(c, &form); err != nil || form.Rows <= 0 {
		form.Rows = defaultRows
	}
	errText, _ := c.StateValue("error").(string)
	job, _ := c.StateValue("job").(string)

	return vdom.Section(
		vdom.Class("data-generate"),
		header("Generate data"),
		vdom.Form(
			vdom.OnSubmit(func(ev vdom.Event) { p.submit(c, ev) }),
			vdom.Label("Model", vdom.Input(vdom.Name("model"), vdom.Value(form.Model))),
			vdom.Label("Rows", vdom.Input(vdom.Name("rows"), vdom.Type("number"), vdom.Value(strconv.Itoa(form.Rows)))),
			vdom.If(errText != "", vdom.P(vdom.Class("form-error"), vdom.Role("alert"), errText)),
			vdom.Button(vdom.Type("submit"), vdom.Class("btn", "btn--primary"), "Generate"),
		),
		vdom.If(job != "", vdom.P(vdom.Class("job"), "Job ", vdom.El("code", job), " queued.")),
	), nil
}

func (p *DataGenerate) submit(c *component.Instance, ev vdom.Event) {
	ctx := context.Background()
	model := strings.TrimSpace(ev.Data["model"])
	rows := defaultRows
	if raw := strings.TrimSpace(ev.Data["rows"]); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.SetState(ctx, map[string]any{"error": "Rows must be a positive number."})
			return
		}
		rows = n
	}
	if model == "" {
		c.SetState(ctx, map[string]any{"error": "Choose a model to generate from."})
		return
	}

	path, err := p.env.API().EndpointFor(config.EndpointGenerate, nil)
	if err != nil {
		c.SetState(ctx, map[string]any{"error": errorText(err)})
		return
	}
	payload, err := p.env.API().Post(ctx, path, map[string]any{"modelId": model, "rows": rows})
	if err != nil {
		toast.Error(p.env.Toasts(), "Generation could not be started")
		c.SetState(ctx, map[string]any{"error": errorText(err)})
		return
	}
	job, _ := payload.(map[string]any)
	toast.Info(p.env.Toasts(), "Generation started")
	c.SetState(ctx, map[string]any{"error": "", "job": field(job, "jobId")})
}

// Rules lists the data rules applied during generation.
type Rules struct {
	component.NopHooks
	env Env
}

func (p *Rules) Render(ctx context.Context, c *component.Instance) (*vdom.VNode, error) {
	payload, err := fetch(ctx, p.env, config.EndpointRules, nil)
	if err != nil {
		return nil, err
	}
	rules := items(payload, "rules")
	if len(rules) == 0 {
		return vdom.Section(vdom.Class("rules"), header("Rules"), emptyState("No rules defined.")), nil
	}
	return vdom.Section(
		vdom.Class("rules"),
		header("Rules"),
		vdom.Ul(vdom.Range(rules, func(_ int, r map[string]any) *vdom.VNode {
			return vdom.Li(
				vdom.Key(field(r, "id")),
				vdom.El("strong", field(r, "name")),
				vdom.If(field(r, "description") != "", vdom.Span(" ", field(r, "description"))),
			)
		})),
	), nil
}
