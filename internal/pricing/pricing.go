package pricing

// Selection is a cart line's chosen customization against a catalog option.
type Selection struct {
	OptionID    string `json:"optionId"`
	ChoiceID    string `json:"choiceId,omitempty"`
	CustomValue string `json:"customValue,omitempty"`
}

type ChoiceDef struct {
	ID            string
	Label         string
	PriceModifier int64 // signed, cents
}

type OptionDef struct {
	ID            string
	Name          string
	AllowMultiple bool
	Choices       []ChoiceDef
}

type OptionBreakdown struct {
	OptionID      string   `json:"optionId"`
	OptionName    string   `json:"optionName"`
	TotalModifier int64    `json:"totalModifier"`
	Choices       []string `json:"choices"`
}

type Breakdown struct {
	BasePrice     int64             `json:"basePrice"`
	PerOption     []OptionBreakdown `json:"perOption"`
	TotalModifier int64             `json:"totalModifier"`
}

// ComputePrice derives the unit price for a product from its base price and
// the customization selections. It is pure and never fails: selections
// referencing options or choices the catalog no longer defines contribute
// nothing, since carts can outlive catalog edits.
//
// Options are walked in catalog-definition order, so reordering the selections
// slice cannot change the result. Multi-select options sum every selected
// choice; single-select options keep only the last selection for the option.
func ComputePrice(basePrice int64, selections []Selection, optionDefs []OptionDef) (int64, Breakdown) {
	breakdown := Breakdown{BasePrice: basePrice}

	for _, def := range optionDefs {
		choiceModifiers := make(map[string]int64, len(def.Choices))
		for _, c := range def.Choices {
			choiceModifiers[c.ID] = c.PriceModifier
		}

		selected := make(map[string]bool)
		if def.AllowMultiple {
			for _, sel := range selections {
				if sel.OptionID != def.ID {
					continue
				}
				if _, ok := choiceModifiers[sel.ChoiceID]; ok {
					selected[sel.ChoiceID] = true
				}
			}
		} else {
			// last valid selection wins
			last := ""
			for _, sel := range selections {
				if sel.OptionID != def.ID {
					continue
				}
				if _, ok := choiceModifiers[sel.ChoiceID]; ok {
					last = sel.ChoiceID
				}
			}
			if last != "" {
				selected[last] = true
			}
		}

		if len(selected) == 0 {
			continue
		}

		ob := OptionBreakdown{
			OptionID:   def.ID,
			OptionName: def.Name,
		}
		// walk def.Choices so the breakdown order is catalog order
		for _, c := range def.Choices {
			if selected[c.ID] {
				ob.TotalModifier += c.PriceModifier
				ob.Choices = append(ob.Choices, c.Label)
			}
		}

		breakdown.PerOption = append(breakdown.PerOption, ob)
		breakdown.TotalModifier += ob.TotalModifier
	}

	return basePrice + breakdown.TotalModifier, breakdown
}
