package services

import "time"

const (
	KeyAccountSeq     = "account:seq"
	KeyAccount        = "account:%d"
	KeyAccountBalance = "account:%d:balance" // hash: rub, usd (minor units)
	KeyAccountByName  = "account:name:%s"
	KeyAccountNonce   = "account:%d:nonce"

	KeyRequestSeq      = "request:seq"
	KeyRequest         = "request:%d"
	KeyPendingRequests = "requests:pending"
	KeyUserRequests    = "account:%d:requests"

	KeyMinesRound    = "mines:round:%s"
	KeyActiveRound   = "account:%d:active_round"
	KeyActiveRounds  = "mines:active" // zset scored by last update
	KeyGameRecord    = "game:%s"
	KeyUserGames     = "account:%d:games"
	KeyRateLimit     = "ratelimit:%d:%s"

	TTLMinesRound = 7 * 24 * time.Hour
	TTLGameRecord = 30 * 24 * time.Hour

	MaxHistory = 100

	DefaultRateLimitBets    = 30  // per minute
	DefaultRateLimitCashout = 60  // per minute
	DefaultRateLimitReveal  = 120 // per minute
	DefaultRateLimitWallet  = 20  // per minute
)
