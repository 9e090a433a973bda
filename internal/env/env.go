package env

import (
	"os"
)

const (
	AWSRegion        = "AWS_REGION"
	AWSID            = "AWS_ID"
	AWSSecret        = "AWS_SECRET"
	AWSToken         = "AWS_TOKEN"
	DynamoDBEndpoint = "DYNAMODB_ENDPOINT"
	OperatorSecret   = "OPERATOR_SECRET"
	AuthRedisURL     = "AUTH_REDIS_URL"
	AuthRedisPass    = "AUTH_REDIS_PASS"
	ChatRedisURL     = "CHAT_REDIS_URL"
	ChatRedisPass    = "CHAT_REDIS_PASS"
	LineAPIEndpoint  = "LINE_API_ENDPOINT"
	WebUrl           = "WEB_URL"
)

// MustHave panics unless every required variable is set. Servers call it
// first thing in main; libraries and tests never trigger it.
func MustHave(keys ...string) {
	for _, key := range keys {
		if os.Getenv(key) == "" {
			panic("env: required environment variable not set: " + key)
		}
	}
}

// Required lists the variables every server needs before it can start.
var Required = []string{
	AWSRegion,
	AWSID,
	AWSSecret,
	OperatorSecret,
	AuthRedisURL,
	ChatRedisURL,
	WebUrl,
}

func Get(key string) string {
	return os.Getenv(key)
}

func GetOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic("env: required environment variable not set: " + key)
	}
	return val
}
