package monitoring

import (
	"github.com/rs/zerolog/log"
)

// Alert reports an invariant breach (logs for now). Used for conditions
// that should be impossible under the store constraints, such as a unit
// carrying more than one active lease.
func Alert(message string, labels map[string]string) {
	log.Error().
		Str("alert", message).
		Fields(labels).
		Msg("ALERT: Allocation invariant issue detected")
}
