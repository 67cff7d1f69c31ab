package config

import "os"

func IsDebug() bool {
	return os.Getenv("CHATWEAVE_DEBUG") == "1"
}
