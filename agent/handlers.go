// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/choria-io/pkgstore/metrics"
	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/transaction"
)

// Request is the body of every agent request, operations use the fields they need
type Request struct {
	Key     string          `json:"key,omitempty"`
	Target  string          `json:"target,omitempty"`
	Repo    string          `json:"repo,omitempty"`
	Path    string          `json:"path,omitempty"`
	Tag     uint32          `json:"tag,omitempty"`
	Actions json.RawMessage `json:"actions,omitempty"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// Response is the reply to every agent request
type Response struct {
	Error string          `json:"error,omitempty"`
	Code  *int8           `json:"code,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is published to <prefix>.events.<tag> for every transaction event
type Event struct {
	Tag  uint32 `json:"tag"`
	Key  string `json:"key,omitempty"`
	Code uint32 `json:"code"`
	Name string `json:"name"`
}

// TransactionResult is the data of a transaction response
type TransactionResult struct {
	Actions     int             `json:"actions"`
	Events      int             `json:"events"`
	FailedIndex *int            `json:"failed_index,omitempty"`
	Stage       model.ErrorKind `json:"stage,omitempty"`
}

type handler func(ctx context.Context, req *Request) (*Response, error)

func (a *Agent) handlers() map[string]handler {
	return map[string]handler{
		"status":        a.handleStatus,
		"statuses":      a.handleStatuses,
		"download":      a.handleDownload,
		"import":        a.handleImport,
		"resolve":       a.handleResolve,
		"clear_cache":   a.handleClearCache,
		"refresh":       a.handleRefresh,
		"force_refresh": a.handleForceRefresh,
		"repo_indexes":  a.handleRepoIndexes,
		"config_get":    a.handleConfigGet,
		"config_set":    a.handleConfigSet,
		"transaction":   a.handleTransaction,
		"history":       a.handleHistory,
	}
}

func (a *Agent) handle(ctx context.Context, op string, body []byte) []byte {
	timer := prometheus.NewTimer(metrics.AgentRequestTime.WithLabelValues(op))
	defer timer.ObserveDuration()

	metrics.AgentRequestCount.WithLabelValues(op).Inc()

	res, err := a.dispatch(ctx, op, body)
	if err != nil {
		metrics.AgentRequestErrorCount.WithLabelValues(op).Inc()
		a.log.Warn("Request failed", "operation", op, "error", err)

		if res == nil {
			res = &Response{}
		}
		res.Error = err.Error()
	}

	j, err := json.Marshal(res)
	if err != nil {
		return fmt.Appendf(nil, `{"error":%q}`, err.Error())
	}

	return j
}

func (a *Agent) dispatch(ctx context.Context, op string, body []byte) (*Response, error) {
	h, ok := a.handlers()[op]
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", op)
	}

	req := &Request{}
	if len(body) > 0 {
		err := json.Unmarshal(body, req)
		if err != nil {
			return nil, fmt.Errorf("invalid request: %w", err)
		}
	}

	a.log.Debug("Handling request", "operation", op)

	return h(ctx, req)
}

func dataResponse(data []byte, err error) (*Response, error) {
	if err != nil {
		return nil, err
	}

	return &Response{Data: data}, nil
}

func jsonResponse(v any, err error) (*Response, error) {
	if err != nil {
		return nil, err
	}

	j, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return &Response{Data: j}, nil
}

func okResponse(err error) (*Response, error) {
	if err != nil {
		return nil, err
	}

	return &Response{}, nil
}

func (a *Agent) handleStatus(ctx context.Context, req *Request) (*Response, error) {
	code, err := a.adapter.Status(ctx, a.store, req.Key, req.Target)

	return &Response{Code: &code}, err
}

func (a *Agent) handleStatuses(ctx context.Context, req *Request) (*Response, error) {
	return dataResponse(a.adapter.AllStatuses(ctx, a.store, req.Repo, req.Target))
}

func (a *Agent) handleDownload(ctx context.Context, req *Request) (*Response, error) {
	return jsonResponse(a.adapter.Download(ctx, a.store, req.Key, nil))
}

func (a *Agent) handleImport(ctx context.Context, req *Request) (*Response, error) {
	if req.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	return jsonResponse(a.adapter.Import(ctx, a.store, req.Key, req.Path))
}

func (a *Agent) handleResolve(_ context.Context, req *Request) (*Response, error) {
	return dataResponse(a.adapter.ResolvePackage(a.store, req.Key))
}

func (a *Agent) handleClearCache(_ context.Context, _ *Request) (*Response, error) {
	return okResponse(a.adapter.ClearCache(a.store))
}

func (a *Agent) handleRefresh(ctx context.Context, _ *Request) (*Response, error) {
	return okResponse(a.adapter.RefreshRepos(ctx, a.store))
}

func (a *Agent) handleForceRefresh(ctx context.Context, _ *Request) (*Response, error) {
	return okResponse(a.adapter.ForceRefreshRepos(ctx, a.store))
}

func (a *Agent) handleRepoIndexes(_ context.Context, _ *Request) (*Response, error) {
	return dataResponse(a.adapter.RepoIndexes(a.store))
}

func (a *Agent) handleConfigGet(_ context.Context, _ *Request) (*Response, error) {
	ch, err := a.adapter.Config(a.store)
	if err != nil {
		return nil, err
	}
	defer a.adapter.Release(ch)

	return dataResponse(a.adapter.ConfigGet(ch))
}

func (a *Agent) handleConfigSet(_ context.Context, req *Request) (*Response, error) {
	if len(req.Config) == 0 {
		return nil, fmt.Errorf("config is required")
	}

	ch, err := a.adapter.Config(a.store)
	if err != nil {
		return nil, err
	}
	defer a.adapter.Release(ch)

	return okResponse(a.adapter.ConfigSet(ch, req.Config))
}

func (a *Agent) handleTransaction(ctx context.Context, req *Request) (*Response, error) {
	if len(req.Actions) == 0 {
		return nil, fmt.Errorf("actions are required")
	}

	actions, err := model.ParseActions(req.Actions)
	if err != nil {
		return nil, err
	}

	th, err := a.adapter.NewTransaction(ctx, a.store, req.Actions)
	if err != nil {
		return nil, err
	}
	defer a.adapter.Release(th)

	result := &TransactionResult{Actions: len(actions)}
	subject := fmt.Sprintf("%s.events.%d", a.cfg.SubjectPrefix, req.Tag)

	err = a.adapter.ProcessTransaction(ctx, th, req.Tag, func(tag uint32, key *string, code uint32) {
		result.Events++

		event := Event{Tag: tag, Code: code, Name: model.EventCode(code).String()}
		if key != nil {
			event.Key = *key
		}

		if a.publish == nil {
			return
		}

		j, err := json.Marshal(event)
		if err != nil {
			return
		}

		err = a.publish(subject, j)
		if err != nil {
			a.log.Warn("Could not publish transaction event", "subject", subject, "error", err)
		}
	})
	if err != nil {
		var ae *transaction.ActionError
		if errors.As(err, &ae) {
			result.FailedIndex = &ae.Index
			result.Stage = ae.Kind
		}
	}

	res, jerr := jsonResponse(result, nil)
	if jerr != nil {
		return nil, jerr
	}

	return res, err
}

func (a *Agent) handleHistory(_ context.Context, req *Request) (*Response, error) {
	if req.Key == "" {
		return jsonResponse(a.session.AllEvents())
	}

	key, err := model.ParsePackageKey(req.Key)
	if err != nil {
		return nil, err
	}

	return jsonResponse(a.session.EventsForPackage(key))
}
