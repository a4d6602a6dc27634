package dispatch

// Topics names the two logical channels and their dead letter topics.
type Topics struct {
	Jobs       string `yaml:"jobs"`
	JobsDLQ    string `yaml:"jobsDeadLetter"`
	Results    string `yaml:"results"`
	ResultsDLQ string `yaml:"resultsDeadLetter"`
}

// ConsumerConfig tunes one consume loop.
type ConsumerConfig struct {
	Group         string `yaml:"group"`
	Concurrency   int    `yaml:"concurrency"`
	PrefetchCount int    `yaml:"prefetchCount"`
	MaxInFlight   int    `yaml:"maxInFlight"`
	MaxRetries    int    `yaml:"maxRetries"`
	RetryDelayMs  int    `yaml:"retryDelayMs"`
	MaxRetryDelay int    `yaml:"maxRetryDelayMs"`
}

// Config configures a Dispatcher.
type Config struct {
	Topics  Topics         `yaml:"topics"`
	Jobs    ConsumerConfig `yaml:"jobs"`
	Results ConsumerConfig `yaml:"results"`
	Publish RetryPolicy    `yaml:"publish"`
}

const (
	DefaultJobsTopic    = "submit-for-execution"
	DefaultResultsTopic = "execution-result"
)

func (c Config) withDefaults() Config {
	if c.Topics.Jobs == "" {
		c.Topics.Jobs = DefaultJobsTopic
	}
	if c.Topics.JobsDLQ == "" {
		c.Topics.JobsDLQ = c.Topics.Jobs + ".dlq"
	}
	if c.Topics.Results == "" {
		c.Topics.Results = DefaultResultsTopic
	}
	if c.Topics.ResultsDLQ == "" {
		c.Topics.ResultsDLQ = c.Topics.Results + ".dlq"
	}
	if c.Jobs.Group == "" {
		c.Jobs.Group = "judge-service"
	}
	if c.Results.Group == "" {
		c.Results.Group = "submit-service"
	}
	c.Publish = c.Publish.withDefaults()
	return c
}
