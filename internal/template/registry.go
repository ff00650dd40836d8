package template

import (
	"fmt"

	"github.com/notify-gateway/internal/domain"
)

// Rendered is the channel-ready output of a template.
type Rendered struct {
	Subject string
	Body    string
}

// renderFunc produces content from the request's data payload.
type renderFunc func(data map[string]string) Rendered

// roleDefault is the mandatory fallback entry for every (type, channel) pair.
const roleDefault = domain.Role("default")

// Registry is the nested template lookup: type -> channel -> role-or-default.
// A missing default is a configuration error surfaced at startup by
// MustValidate, never a silent generic fallback at send time.
type Registry struct {
	table map[domain.NotificationType]map[domain.Channel]map[domain.Role]renderFunc
}

// NewRegistry builds the full template table.
func NewRegistry() *Registry {
	return &Registry{table: buildTable()}
}

// Render resolves and executes the template for (typ, channel, role).
// An unknown role falls back to the channel's default entry.
func (r *Registry) Render(typ domain.NotificationType, channel domain.Channel, role domain.Role, data map[string]string) (Rendered, error) {
	byChannel, ok := r.table[typ]
	if !ok {
		return Rendered{}, fmt.Errorf("no templates for type %q: %w", typ, domain.ErrBadRequest)
	}
	byRole, ok := byChannel[channel]
	if !ok {
		return Rendered{}, fmt.Errorf("type %q has no %q template: %w", typ, channel, domain.ErrUnsupportedChannel)
	}
	fn, ok := byRole[role]
	if !ok {
		fn = byRole[roleDefault]
	}
	if data == nil {
		data = map[string]string{}
	}
	return fn(data), nil
}

// MustValidate panics unless every registered (type, channel) pair carries a
// default entry. Called once at startup so a missing template is caught
// before the first dispatch.
func (r *Registry) MustValidate() {
	for typ, byChannel := range r.table {
		if len(byChannel) == 0 {
			panic(fmt.Sprintf("template registry: type %q has no channels", typ))
		}
		for channel, byRole := range byChannel {
			if _, ok := byRole[roleDefault]; !ok {
				panic(fmt.Sprintf("template registry: %q/%q is missing a default entry", typ, channel))
			}
		}
	}
}

// Channels lists the channels that have templates for typ.
func (r *Registry) Channels(typ domain.NotificationType) []domain.Channel {
	var out []domain.Channel
	for ch := range r.table[typ] {
		out = append(out, ch)
	}
	return out
}

// valueOr returns data[key] or fallback when absent/empty.
func valueOr(data map[string]string, key, fallback string) string {
	if v := data[key]; v != "" {
		return v
	}
	return fallback
}
