package chart

// TurnstileChart makes an example chart that's useful to have around.
//
// See https://en.wikipedia.org/wiki/Finite-state_machine#Example:_coin-operated_turnstile.
func TurnstileChart() *Node {
	return &Node{
		Id:          "scn:///Turnstile",
		Description: "A coin-operated turnstile.",
		StartNode:   "scn:///Turnstile/Locked",
		Attributes: []*VariableDeclaration{
			{
				Name:  "coins",
				Type:  TypeInteger,
				Value: Integer(0),
			},
		},
		Nodes: []*Node{
			{
				Id:          "scn:///Turnstile/Locked",
				Description: "Pushing does nothing until a coin shows up.",
				Transitions: []*Transition{
					{
						Guard: &Guard{Event: "sme:///turnstile/coin"},
						To:    "scn:///Turnstile/Unlocked",
					},
					{
						Guard: &Guard{Event: "sme:///turnstile/push"},
						To:    "scn:///Turnstile/Locked",
					},
				},
			},
			{
				Id:          "scn:///Turnstile/Unlocked",
				Description: "One push, then locked again.",
				Transitions: []*Transition{
					{
						Guard: &Guard{Event: "sme:///turnstile/coin"},
						To:    "scn:///Turnstile/Unlocked",
					},
					{
						Guard: &Guard{Event: "sme:///turnstile/push"},
						To:    "scn:///Turnstile/Locked",
					},
				},
			},
		},
	}
}
