package cfg

const (
	CommandServe     = "serve"
	CommandCheck     = "check"
	CommandVAPIDKeys = "vapid-keys"
)

const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"

	BrokerMemory = "memory"
	BrokerKafka  = "kafka"
)

type Cfg struct {
	Command string

	// Storage
	Store     string
	DBPath    string
	RedisAddr string

	// Fan-out
	Broker       string
	KafkaBrokers []string
	KafkaGroup   string

	// Application configuration
	MonitorConfig   string
	Port            string
	Schedule        string
	WorkerCount     int
	PushConcurrency int
	Environment     string
	APIAccessKey    string

	// Web push
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	// Mail relay
	SMTPAddr     string
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
