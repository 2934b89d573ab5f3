package providers

type together struct {
	base
}

func newTogether() *together {
	return &together{base{name: Together, baseURL: "https://api.together.xyz"}}
}
