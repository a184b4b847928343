package domain

// Integration is an installed messaging-platform app for one workspace.
type Integration struct {
	ID            int64
	AppID         string
	TeamID        string
	TeamName      string
	BotUserID     string
	AccessToken   string
	SigningSecret string
}
