package host

// go:generate go tool compile -p host -importcfg importcfg -o ../host.o host.go
func Version() string {
	return "host"
}
