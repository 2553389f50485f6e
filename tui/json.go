package tui

import (
	"encoding/json"
	"io"
)

// JSONPresenter renders output as JSON.
type JSONPresenter struct {
	w       io.Writer
	encoder *json.Encoder
}

// NewJSONPresenter creates a new JSON presenter.
func NewJSONPresenter(opts PresenterOptions) *JSONPresenter {
	encoder := json.NewEncoder(opts.Writer)
	encoder.SetIndent("", "  ")
	return &JSONPresenter{
		w:       opts.Writer,
		encoder: encoder,
	}
}

func (p *JSONPresenter) RenderStatus(status *StatusView) error {
	return p.encoder.Encode(status)
}

func (p *JSONPresenter) RenderChecks(checks []*CheckView) error {
	return p.encoder.Encode(nonNil(checks))
}

func (p *JSONPresenter) RenderGuilds(guilds []*GuildPolicyView) error {
	return p.encoder.Encode(nonNil(guilds))
}

func (p *JSONPresenter) RenderPolicy(policy *PolicyView) error {
	return p.encoder.Encode(policy)
}

func (p *JSONPresenter) RenderValidation(result *ValidationView) error {
	return p.encoder.Encode(result)
}

func (p *JSONPresenter) RenderVerdict(verdict *VerdictView) error {
	return p.encoder.Encode(verdict)
}

func (p *JSONPresenter) RenderAudits(records []*AuditView) error {
	return p.encoder.Encode(nonNil(records))
}

func (p *JSONPresenter) RenderPrune(result *PruneView) error {
	return p.encoder.Encode(result)
}

func (p *JSONPresenter) RenderConfig(config *ConfigView) error {
	return p.encoder.Encode(&ConfigView{Location: config.Location, Values: redactSecrets(config.Values)})
}

func (p *JSONPresenter) RenderDiff(diff *DiffView) error {
	return p.encoder.Encode(diff)
}

func (p *JSONPresenter) RenderStreamSync(result *StreamSyncView) error {
	return p.encoder.Encode(result)
}

// RenderError renders an error message as JSON.
func (p *JSONPresenter) RenderError(err error) error {
	output := struct {
		Error string `json:"error"`
	}{
		Error: err.Error(),
	}
	return p.encoder.Encode(output)
}

// RenderMessage renders a simple message as JSON.
func (p *JSONPresenter) RenderMessage(message string) error {
	output := struct {
		Message string `json:"message"`
	}{
		Message: message,
	}
	return p.encoder.Encode(output)
}

// nonNil keeps empty lists rendering as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// Ensure JSONPresenter implements Presenter
var _ Presenter = (*JSONPresenter)(nil)
