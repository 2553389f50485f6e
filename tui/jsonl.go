package tui

import (
	"encoding/json"
	"io"
)

// JSONLPresenter renders output as newline-delimited JSON. Lists are
// written one item per line so they can be piped into line tools.
type JSONLPresenter struct {
	w       io.Writer
	encoder *json.Encoder
}

// NewJSONLPresenter creates a new JSONL presenter.
func NewJSONLPresenter(opts PresenterOptions) *JSONLPresenter {
	return &JSONLPresenter{
		w:       opts.Writer,
		encoder: json.NewEncoder(opts.Writer),
	}
}

func encodeLines[T any](enc *json.Encoder, items []T) error {
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

func (p *JSONLPresenter) RenderStatus(status *StatusView) error {
	return p.encoder.Encode(status)
}

func (p *JSONLPresenter) RenderChecks(checks []*CheckView) error {
	return encodeLines(p.encoder, checks)
}

func (p *JSONLPresenter) RenderGuilds(guilds []*GuildPolicyView) error {
	return encodeLines(p.encoder, guilds)
}

func (p *JSONLPresenter) RenderPolicy(policy *PolicyView) error {
	return p.encoder.Encode(policy)
}

func (p *JSONLPresenter) RenderValidation(result *ValidationView) error {
	return p.encoder.Encode(result)
}

func (p *JSONLPresenter) RenderVerdict(verdict *VerdictView) error {
	return p.encoder.Encode(verdict)
}

func (p *JSONLPresenter) RenderAudits(records []*AuditView) error {
	return encodeLines(p.encoder, records)
}

func (p *JSONLPresenter) RenderPrune(result *PruneView) error {
	return p.encoder.Encode(result)
}

func (p *JSONLPresenter) RenderConfig(config *ConfigView) error {
	return p.encoder.Encode(&ConfigView{Location: config.Location, Values: redactSecrets(config.Values)})
}

func (p *JSONLPresenter) RenderDiff(diff *DiffView) error {
	return p.encoder.Encode(diff)
}

func (p *JSONLPresenter) RenderStreamSync(result *StreamSyncView) error {
	return encodeLines(p.encoder, result.Targets)
}

func (p *JSONLPresenter) RenderError(err error) error {
	return p.encoder.Encode(struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}

func (p *JSONLPresenter) RenderMessage(message string) error {
	return p.encoder.Encode(struct {
		Message string `json:"message"`
	}{Message: message})
}

// Ensure JSONLPresenter implements Presenter
var _ Presenter = (*JSONLPresenter)(nil)
