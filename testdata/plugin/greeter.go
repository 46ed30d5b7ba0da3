package plugin

import "github.com/ZenLiuCN/dynpatch"

// go:generate go tool compile -p plugin -importcfg importcfg -o ../plugin.o greeter.go
type greeter struct {
	prefix string
}

func (g greeter) Greet(name string) string {
	return g.prefix + name
}

func NewGreeter() dynpatch.Greeter {
	return greeter{prefix: "hello from plugin, "}
}

func Version() string {
	return "plugin"
}
