package model

// ProcessStatus is the supervisor-reported state of an app process.
type ProcessStatus string

const (
	StatusOnline   ProcessStatus = "online"
	StatusStopped  ProcessStatus = "stopped"
	StatusErrored  ProcessStatus = "errored"
	StatusLaunched ProcessStatus = "launching"
	StatusUnknown  ProcessStatus = "unknown"
)

// Application is a deployed project identified by its folder slug.
type Application struct {
	FolderName  string
	WorkingDir  string
	Port        int
	ProcessName string
}

// AppView is what callers get back when they look an application up.
type AppView struct {
	FolderName   string        `json:"folderName"`
	Name         string        `json:"name"`
	GitRemoteURL string        `json:"gitRemoteUrl"`
	URL          string        `json:"url"`
	InternalURL  string        `json:"internalUrl"`
	Port         int           `json:"port"`
	ProcessName  string        `json:"processName"`
	Status       ProcessStatus `json:"status"`
	SecretKeys   []string      `json:"secretKeys"`
}

// Commit is a summary of the latest commit in a template repository.
type Commit struct {
	Hash         string `json:"hash"`
	ShortHash    string `json:"shortHash"`
	Author       string `json:"author"`
	Message      string `json:"message"`
	ShortMessage string `json:"shortMessage"`
}

// AppTemplate is a source tree new applications can be created from.
type AppTemplate struct {
	FolderName   string  `json:"folderName"`
	GitRemoteURL string  `json:"gitRemoteUrl"`
	LatestCommit *Commit `json:"latestCommit"`
}
