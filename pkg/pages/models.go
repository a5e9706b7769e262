package pages

import (
	"context"
	"errors"
	"strings"

	"github.com/vango-dev/synthdesk/internal/config"
	"github.com/vango-dev/synthdesk/pkg/apiclient"
	"github.com/vango-dev/synthdesk/pkg/component"
	"github.com/vango-dev/synthdesk/pkg/toast"
	"github.com/vango-dev/synthdesk/pkg/vdom"
)

// Models lists the account's models. Status changes pushed over the
// socket land in the models binding source, keyed by model id, and
// override the listed status.
type Models struct {
	component.NopHooks
	env  Env
	live live
}

func (p *Models) Render(ctx context.Context, c *component.Instance) (*vdom.VNode, error) {
	payload, err := fetch(ctx, p.env, config.EndpointModels, nil)
	if err != nil {
		return nil, err
	}
	models := items(payload, "models")
	statuses, _ := p.env.Bindings().GetData(SourceModels)

	newModel := vdom.Button(
		vdom.Class("btn", "btn--primary"),
		vdom.OnClick(func(vdom.Event) { p.env.Navigate(context.Background(), "/models/create") }),
		"New model",
	)
	if len(models) == 0 {
		return vdom.Section(vdom.Class("models"), header("Models", newModel), emptyState("No models yet.")), nil
	}

	return vdom.Section(
		vdom.Class("models"),
		header("Models", newModel),
		vdom.Table(
			vdom.Thead(vdom.Tr(vdom.Th("Name"), vdom.Th("Type"), vdom.Th("Status"))),
			vdom.Tbody(vdom.Range(models, func(_ int, m map[string]any) *vdom.VNode {
				id := field(m, "id")
				status := field(m, "status")
				if s, ok := statuses[id].(string); ok {
					status = s
				}
				return vdom.Tr(
					vdom.Key(id),
					vdom.Td(vdom.A(vdom.Href(modelURL(id)), field(m, "name"))),
					vdom.Td(field(m, "type")),
					vdom.Td(vdom.Span(vdom.Class("status", "status--"+status), status)),
				)
			})),
		),
	), nil
}

func (p *Models) OnMount(_ context.Context, c *component.Instance) {
	p.live.bind(p.env, c, SourceModels)
}

func (p *Models) OnDestroy(c *component.Instance) {
	p.live.unbind(p.env, c)
}

// ModelCreate is the new-model form.
type ModelCreate struct {
	component.NopHooks
	env Env
}

func (p *ModelCreate) Render(ctx context.Context, c *component.Instance) (*vdom.VNode, error) {
	errText, _ := c.StateValue("error").(string)
	name, _ := c.StateValue("name").(string)

	return vdom.Section(
		vdom.Class("model-create"),
		header("Create model"),
		vdom.Form(
			vdom.OnSubmit(func(ev vdom.Event) { p.submit(c, ev) }),
			vdom.Label("Name", vdom.Input(vdom.Name("name"), vdom.Value(name), vdom.Placeholder("customer-churn"),
				vdom.OnInput(func(ev vdom.Event) {
					c.SetState(context.Background(), map[string]any{"name": ev.Value})
				}),
			)),
			vdom.Label("Dataset", vdom.Input(vdom.Name("dataset"), vdom.Placeholder("dataset id"))),
			vdom.If(errText != "", vdom.P(vdom.Class("form-error"), vdom.Role("alert"), errText)),
			vdom.Button(vdom.Type("submit"), vdom.Class("btn", "btn--primary"), "Create"),
		),
	), nil
}

func (p *ModelCreate) submit(c *component.Instance, ev vdom.Event) {
	ctx := context.Background()
	name := strings.TrimSpace(ev.Data["name"])
	if name == "" {
		name, _ = c.StateValue("name").(string)
		name = strings.TrimSpace(name)
	}
	if name == "" {
		c.SetState(ctx, map[string]any{"error": "A model needs a name."})
		return
	}

	body := map[string]string{"name": name}
	if ds := strings.TrimSpace(ev.Data["dataset"]); ds != "" {
		body["datasetId"] = ds
	}
	api := p.env.API()
	path, err := api.EndpointFor(config.EndpointModels, nil)
	if err != nil {
		c.SetState(ctx, map[string]any{"error": errorText(err)})
		return
	}
	payload, err := api.Post(ctx, path, body)
	if err != nil {
		toast.Error(p.env.Toasts(), "Model could not be created")
		c.SetState(ctx, map[string]any{"error": errorText(err)})
		return
	}

	api.InvalidateCache(path)
	toast.Success(p.env.Toasts(), "Model "+name+" created")

	created, _ := payload.(map[string]any)
	target := "/models"
	if id := field(created, "id"); id != "" {
		target = modelURL(id)
	}
	p.env.Navigate(ctx, target)
}

// ModelDetail shows one model.
type ModelDetail struct {
	component.NopHooks
	env  Env
	live live
}

func (p *ModelDetail) Render(ctx context.Context, c *component.Instance) (*vdom.VNode, error) {
	var route struct {
		ID string `param:"id"`
	}
	if err := bind(c, &route); err != nil {
		return nil, err
	}
	id := route.ID
	payload, err := fetch(ctx, p.env, config.EndpointModel, map[string]string{"id": id})
	if err != nil {
		return nil, err
	}
	model, _ := payload.(map[string]any)
	status := field(model, "status")
	if statuses, ok := p.env.Bindings().GetData(SourceModels); ok {
		if s, ok := statuses[id].(string); ok {
			status = s
		}
	}

	return vdom.Section(
		vdom.Class("model-detail"),
		header(field(model, "name"),
			vdom.A(vdom.Class("btn"), vdom.Href(generateURL(id)), "Generate data"),
			vdom.Button(vdom.Class("btn", "btn--danger"),
				vdom.OnClick(func(vdom.Event) { p.remove(id) }),
				"Delete",
			),
		),
		vdom.El("dl",
			vdom.El("dt", "Status"), vdom.El("dd", status),
			vdom.El("dt", "Type"), vdom.El("dd", field(model, "type")),
			vdom.El("dt", "Created"), vdom.El("dd", field(model, "createdAt")),
		),
	), nil
}

func (p *ModelDetail) remove(id string) {
	ctx := context.Background()
	api := p.env.API()
	path, err := api.EndpointFor(config.EndpointModel, map[string]string{"id": id})
	if err == nil {
		_, err = api.Delete(ctx, path)
	}
	if err != nil {
		toast.Error(p.env.Toasts(), "Failed to delete model")
		return
	}
	if list, err := api.EndpointFor(config.EndpointModels, nil); err == nil {
		api.InvalidateCache(list)
	}
	toast.Success(p.env.Toasts(), "Model deleted")
	p.env.Navigate(ctx, "/models")
}

func (p *ModelDetail) OnMount(_ context.Context, c *component.Instance) {
	p.live.bind(p.env, c, SourceModels)
}

func (p *ModelDetail) OnDestroy(c *component.Instance) {
	p.live.unbind(p.env, c)
}

// errorText picks the server's message out of an API error.
func errorText(err error) string {
	var herr *apiclient.HTTPError
	if errors.As(err, &herr) {
		if msg := herr.Message(); msg != "" {
			return msg
		}
	}
	return "Something went wrong. Please try again."
}
