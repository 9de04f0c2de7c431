package version

import "runtime/debug"

// AppName is the service name reported in logs, traces and /healthz.
const AppName = "titiler"

// set via -ldflags at release build time
var (
	Version    = "dev"
	Commit     = "none"
	CommitDate string
	BuildDate  string
	BuildId    string
	GoVersion  string
	VCSDirty   *bool
)

type Info struct {
	AppName    string `json:"app"`
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	CommitDate string `json:"commit_date"`
	BuildDate  string `json:"build_date"`
	BuildId    string `json:"build_id"`
	GoVersion  string `json:"go_version"`
	VCSDirty   *bool  `json:"vcs_dirty,omitempty"`
}

// Get merges ldflags values with the VCS stamps the go toolchain embeds.
// ldflags win when both are set.
func Get() Info {
	out := Info{
		AppName:    AppName,
		Version:    Version,
		Commit:     Commit,
		CommitDate: CommitDate,
		BuildDate:  BuildDate,
		BuildId:    BuildId,
		GoVersion:  GoVersion,
		VCSDirty:   VCSDirty,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	out.GoVersion = bi.GoVersion

	var dirty *bool
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if out.Commit == "none" && s.Value != "" {
				out.Commit = s.Value
			}
		case "vcs.time":
			if out.BuildDate == "" && s.Value != "" {
				out.BuildDate = s.Value
			}
			if out.CommitDate == "" {
				out.CommitDate = s.Value
			}
		case "vcs.modified":
			b := s.Value == "true"
			if s.Value == "true" || s.Value == "false" {
				dirty = &b
			}
		}
	}
	if dirty != nil && out.VCSDirty == nil {
		out.VCSDirty = dirty
	}
	return out
}
