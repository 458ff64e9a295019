// File: internal/executor/api_steps.go
package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/promptpilot/internal/api"
	"github.com/xkilldash9x/promptpilot/internal/prompt"
)

// endpoint returns the step's endpoint with placeholders resolved. No request may be
// issued when this fails.
func (d *Driver) endpoint(step prompt.Step) (string, error) {
	raw, ok := step.Details.Endpoint()
	if !ok || raw == "" {
		return "", fmt.Errorf("%w for %s", ErrMissingEndpoint, step.Action)
	}
	return d.store.Substitute(raw)
}

func (d *Driver) executeGet(ctx context.Context, step prompt.Step) (bool, error) {
	endpoint, err := d.endpoint(step)
	if err != nil {
		return false, err
	}
	resp, err := d.api.Get(ctx, endpoint)
	if err != nil {
		return false, err
	}

	name, ok := step.Details.StoreAs()
	if !ok {
		return false, nil
	}
	value, found := getValue(resp, name)
	if !found {
		d.logger.Warn("No value found to store from response.", zap.String("variable", name), zap.Int("status", resp.Status))
		return false, nil
	}
	d.store.Set(name, value)
	return false, nil
}

func (d *Driver) executePost(ctx context.Context, step prompt.Step) (bool, error) {
	endpoint, err := d.endpoint(step)
	if err != nil {
		return false, err
	}
	resp, err := d.api.Post(ctx, endpoint, nil)
	if err != nil {
		return false, err
	}

	name, ok := step.Details.StoreAs()
	if !ok {
		return false, nil
	}
	value, found := postValue(resp, name)
	if !found {
		d.logger.Warn("No value found to store from response.", zap.String("variable", name), zap.Int("status", resp.Status))
		return false, nil
	}
	d.store.Set(name, value)
	return false, nil
}

func (d *Driver) executeDelete(ctx context.Context, step prompt.Step) (bool, error) {
	endpoint, err := d.endpoint(step)
	if err != nil {
		return false, err
	}
	_, err = d.api.Delete(ctx, endpoint)
	return false, err
}

// getValue picks what a GET stores: the tagged field named after the variable, else the id.
func getValue(resp *api.Response, name string) (any, bool) {
	if text, ok := resp.Text(); ok {
		if !api.LooksLikeXML(text) {
			return nil, false
		}
		if v, ok := api.ExtractXMLValue(text, name); ok && v != "" {
			return v, true
		}
		if v, ok := api.ExtractXMLValue(text, "id"); ok && v != "" {
			return v, true
		}
		return nil, false
	}
	if obj, ok := resp.Object(); ok {
		if v := obj[name]; truthy(v) {
			return v, true
		}
		if v := obj["id"]; truthy(v) {
			return v, true
		}
	}
	return nil, false
}

// postValue is getValue plus a final fallback to the whole structured body.
func postValue(resp *api.Response, name string) (any, bool) {
	if v, ok := getValue(resp, name); ok {
		return v, true
	}
	switch resp.Body.(type) {
	case map[string]any, []any:
		return resp.Body, true
	}
	return nil, false
}

// truthy treats missing, null, false, zero and empty values as not worth storing.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return true
}
