package inventory

// ReasonMeta maps a non-order reason to its presentation hints.
type ReasonMeta struct {
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

var reasonMeta = map[string]ReasonMeta{
	"Alternative ordered":     {Color: "green", Icon: "tick"},
	"Planning to order later": {Color: "amber", Icon: "clock"},
	"Supplier has no stock":   {Color: "red", Icon: "cross"},
}

// NonOrderReasonMeta returns the presentation for a reason, with a neutral
// fallback for unknown or empty reasons.
func NonOrderReasonMeta(reason *string) ReasonMeta {
	if reason != nil {
		if meta, ok := reasonMeta[*reason]; ok {
			return meta
		}
	}
	return ReasonMeta{Color: "gray", Icon: "info"}
}
