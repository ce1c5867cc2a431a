package installer

import (
	"os"
	"os/user"
	"strings"
)

// Expand substitutes run placeholders in s:
//
//	{version} {arch} {goarch} {debarch} {codename} {distro}
//	{prefix} {bin} {opt} {home} {user}
func (e *Env) Expand(s, version string) string {
	home, _ := os.UserHomeDir()
	return strings.NewReplacer(
		"{user}", currentUser(),
		"{version}", version,
		"{arch}", e.Arch.Uname,
		"{goarch}", e.Arch.GOARCH,
		"{debarch}", e.Arch.Deb,
		"{codename}", e.OS.Codename,
		"{distro}", e.OS.ID,
		"{prefix}", e.Layout.Prefix,
		"{bin}", e.Layout.BinDir,
		"{opt}", e.Layout.OptDir,
		"{home}", home,
	).Replace(s)
}

func (e *Env) expandAll(args []string, version string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = e.Expand(a, version)
	}
	return out
}

func currentUser() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}
