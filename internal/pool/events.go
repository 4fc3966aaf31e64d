package pool

import (
	"sort"

	abci "github.com/cometbft/cometbft/abci/types"
)

// Event types consumed by clients and the gateway event stream.
const (
	EventTypePoolInitialized   = "PoolInitialized"
	EventTypeJoined            = "Joined"
	EventTypeRewardDistributed = "RewardDistributed"
	EventTypeRoundAdvanced     = "RoundAdvanced"
	EventTypeRoleGranted       = "RoleGranted"
	EventTypeRoleRevoked       = "RoleRevoked"
	EventTypeAdmissionChanged  = "AdmissionChanged"
	EventTypeUpgraded          = "Upgraded"
)

func newEvent(typ string, attrs map[string]string) abci.Event {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return ev
}
