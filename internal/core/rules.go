package core

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewProgressionBoundsRule())
	engine.Register(NewCurrencyBoundsRule())
	engine.Register(NewSlotKeysUniqueRule())
	engine.Register(NewStatusIDsUniqueRule())
	engine.Register(NewBackpackCapacityRule())
	engine.Register(NewResourceOverflowRule())
	return engine
}

type ruleView struct {
	character Character
	status    Status
	capacity  int
}

func (v ruleView) Character() Character  { return v.character }
func (v ruleView) Status() Status        { return v.status }
func (v ruleView) BackpackCapacity() int { return v.capacity }
