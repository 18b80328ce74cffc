package config

// FeedConfig describes one synchronized collection: where its snapshot and push
// channel live and how new entities are placed.
type FeedConfig struct {
	// Enabled starts a session for this feed.
	Enabled bool `mapstructure:"enabled" default:"false"`
	// SnapshotURL is the REST endpoint returning the full collection.
	SnapshotURL string `mapstructure:"snapshot_url" default:"" validate:"required,url"`
	// PushURL is the WebSocket endpoint streaming notifications.
	PushURL string `mapstructure:"push_url" default:"" validate:"required,url"`
	// TokenParam is the query parameter carrying the bearer token on the push URL.
	TokenParam string `mapstructure:"token_param" default:"token"`
	// PageSize is sent as the size query parameter. Zero omits paging.
	PageSize int `mapstructure:"page_size" default:"1000000" validate:"gte=0"`
	// ItemsField names the array field when the snapshot is wrapped in an object.
	ItemsField string `mapstructure:"items_field" default:""`
	// MessageFormat is the push message shape: envelope ({type,data}) or entity
	// (a bare object applied as CREATE).
	MessageFormat string `mapstructure:"message_format" default:"envelope" validate:"oneof=envelope entity"`
	// Placement is where new entities go: append or prepend.
	Placement string `mapstructure:"placement" default:"append" validate:"oneof=append prepend"`
	// RequiredRole must be present in the token's roles. Empty allows any token.
	RequiredRole string `mapstructure:"required_role" default:""`
	// MaxBuffered bounds notifications held while a snapshot loads.
	MaxBuffered int `mapstructure:"max_buffered" default:"10000" validate:"gte=0"`
	// RetrySeconds retries a failed first load. Zero disables retries.
	RetrySeconds int `mapstructure:"retry_seconds" default:"5" validate:"gte=0"`
	// TimeoutSeconds bounds one snapshot fetch.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30" validate:"gte=0"`
}

// Feeds holds the known feeds.
type Feeds struct {
	// Users is the admin user grid; it requires ROLE_ADMIN.
	Users FeedConfig `mapstructure:"users"`
	// News is the social news feed; new posts go first.
	News FeedConfig `mapstructure:"news"`
	// Transactions is the finance transaction list.
	Transactions FeedConfig `mapstructure:"transactions"`
}

// NamedFeed pairs a feed name with its configuration.
type NamedFeed struct {
	Name string
	FeedConfig
}

// All returns every feed in a stable order.
func (f Feeds) All() []NamedFeed {
	return []NamedFeed{
		{Name: "users", FeedConfig: f.Users},
		{Name: "news", FeedConfig: f.News},
		{Name: "transactions", FeedConfig: f.Transactions},
	}
}

// Get returns the named feed.
func (f Feeds) Get(name string) (NamedFeed, bool) {
	for _, feed := range f.All() {
		if feed.Name == name {
			return feed, true
		}
	}
	return NamedFeed{}, false
}

// feedDefaults override the shared struct tag defaults per feed.
var feedDefaults = map[string]any{
	"feeds.users.enabled":             "true",
	"feeds.users.snapshot_url":        "http://localhost:8080/api/users",
	"feeds.users.push_url":            "ws://localhost:8080/ws/users",
	"feeds.users.required_role":       "ROLE_ADMIN",
	"feeds.news.snapshot_url":         "http://localhost:8080/api/news",
	"feeds.news.push_url":             "ws://localhost:8080/ws",
	"feeds.news.placement":            "prepend",
	"feeds.news.message_format":       "entity",
	"feeds.news.page_size":            "0",
	"feeds.transactions.snapshot_url": "http://localhost:8080/api/transaction/all",
	"feeds.transactions.push_url":     "ws://localhost:8080/ws/transactions",
	"feeds.transactions.items_field":  "body",
	"feeds.transactions.page_size":    "0",
}
