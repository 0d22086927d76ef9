package config

import "time"

type Config struct {
	Web      Web
	DB       DB
	Cors     Cors
	Checkout Checkout
	Reviews  Reviews
	Rate     Rate
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost"`
	Name       string `conf:"default:marketplace"`
	DisableTLS bool   `conf:"default:true"`
}

type Cors struct {
	Origin string
}

// Checkout bounds the cart purchase transaction. Timeout caps how long the
// user's balance row may stay locked; Attempts bounds retries on
// serialization conflicts before the caller is told to try again.
type Checkout struct {
	Timeout  time.Duration `conf:"default:5s"`
	Attempts int           `conf:"default:3"`
}

// Reviews.OnePerCourse rejects a second review from the same user for the
// same course. Off by default.
type Reviews struct {
	OnePerCourse bool `conf:"default:false"`
}

type Rate struct {
	Burst       int           `conf:"default:20"`
	ExpiryMins  int           `conf:"default:10"`
	PerInterval time.Duration `conf:"default:100ms"`
}
