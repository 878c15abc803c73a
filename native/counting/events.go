package counting

// Response attribute keys and values reported by the handlers.
const (
	AttrAction          = "action"
	AttrSender          = "sender"
	AttrCounter         = "counter"
	AttrDonatedToParent = "donated_to_parent"
	AttrFromVersion     = "from_version"
	AttrToVersion       = "to_version"

	ActionInstantiate = "instantiate"
	ActionPoke        = "poke"
	ActionWithdraw    = "withdraw"
	ActionMigrate     = "migrate"
)
