package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"casino-miniapp/internal/config"
	"casino-miniapp/internal/models"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// scriptError maps a Lua error reply back to the sentinel it was raised for.
func scriptError(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		ErrInsufficientFunds, ErrAccountNotFound, ErrNameTaken,
		ErrRequestNotFound, ErrAlreadyProcessed, ErrRoundNotFound, ErrRoundActive, ErrRoundFinished,
	} {
		if strings.Contains(err.Error(), sentinel.Error()) {
			return sentinel
		}
	}
	return err
}

// Every key a script touches is passed in KEYS. The account id is allocated
// before the script runs so its keys can be named up front; a name clash
// leaves a gap in the sequence.
var createAccountScript = redis.NewScript(`
	local name_key = KEYS[1]
	local account_key = KEYS[2]
	local balance_key = KEYS[3]

	if redis.call("EXISTS", name_key) == 1 then
		return redis.error_reply("an account with this name already exists")
	end

	redis.call("SET", name_key, ARGV[1])
	redis.call("SET", account_key, ARGV[2])
	redis.call("HSET", balance_key, "rub", ARGV[3], "usd", ARGV[4])

	return "OK"
`)

func (s *RedisStore) CreateAccount(ctx context.Context, account *models.StoredAccount) error {
	id, err := s.client.Incr(ctx, KeyAccountSeq).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate account id: %v", err)
	}

	created := *account
	created.ID = id
	data, err := json.Marshal(&created)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %v", err)
	}

	keys := []string{
		fmt.Sprintf(KeyAccountByName, account.FullName),
		fmt.Sprintf(KeyAccount, id),
		fmt.Sprintf(KeyAccountBalance, id),
	}
	err = createAccountScript.Run(ctx, s.client, keys,
		id, data, account.BalanceRUB, account.BalanceUSD).Err()
	if err != nil {
		return scriptError(err)
	}

	account.ID = id
	return nil
}

// accountWithBalances loads the profile and pairs it with the {rub, usd}
// balances a script reported, so the caller sees the result of its own write.
func (s *RedisStore) accountWithBalances(ctx context.Context, id int64, balances []int64) (*models.StoredAccount, error) {
	if len(balances) != 2 {
		return nil, fmt.Errorf("unexpected balance reply: %v", balances)
	}

	data, err := s.client.Get(ctx, fmt.Sprintf(KeyAccount, id)).Result()
	if err == redis.Nil {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %v", err)
	}

	var account models.StoredAccount
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %v", err)
	}
	account.BalanceRUB = balances[0]
	account.BalanceUSD = balances[1]
	return &account, nil
}

func (s *RedisStore) GetAccount(ctx context.Context, id int64) (*models.StoredAccount, error) {
	pipe := s.client.Pipeline()
	profileCmd := pipe.Get(ctx, fmt.Sprintf(KeyAccount, id))
	balanceCmd := pipe.HMGet(ctx, fmt.Sprintf(KeyAccountBalance, id), "rub", "usd")
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get account: %v", err)
	}

	data, err := profileCmd.Result()
	if err == redis.Nil {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %v", err)
	}

	var account models.StoredAccount
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %v", err)
	}

	balances, err := balanceCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %v", err)
	}
	account.BalanceRUB = parseMinor(balances[0])
	account.BalanceUSD = parseMinor(balances[1])

	return &account, nil
}

func (s *RedisStore) GetAccountByName(ctx context.Context, fullName string) (*models.StoredAccount, error) {
	id, err := s.client.Get(ctx, fmt.Sprintf(KeyAccountByName, fullName)).Int64()
	if err == redis.Nil {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %v", err)
	}
	return s.GetAccount(ctx, id)
}

var moveScript = redis.NewScript(`
	local key = KEYS[1]
	local debit_rub = tonumber(ARGV[1])
	local credit_rub = tonumber(ARGV[2])
	local debit_usd = tonumber(ARGV[3])
	local credit_usd = tonumber(ARGV[4])

	if redis.call("EXISTS", key) == 0 then
		return redis.error_reply("account not found")
	end

	local rub = tonumber(redis.call("HGET", key, "rub") or "0")
	local usd = tonumber(redis.call("HGET", key, "usd") or "0")

	if rub < debit_rub or usd < debit_usd then
		return redis.error_reply("insufficient funds")
	end

	rub = redis.call("HINCRBY", key, "rub", credit_rub - debit_rub)
	usd = redis.call("HINCRBY", key, "usd", credit_usd - debit_usd)

	return {rub, usd}
`)

func (s *RedisStore) Move(ctx context.Context, userID int64, m models.Movement) (*models.StoredAccount, error) {
	key := fmt.Sprintf(KeyAccountBalance, userID)
	balances, err := moveScript.Run(ctx, s.client, []string{key},
		m.DebitRUB, m.CreditRUB, m.DebitUSD, m.CreditUSD).Int64Slice()
	if err != nil {
		return nil, scriptError(err)
	}
	return s.accountWithBalances(ctx, userID, balances)
}

func (s *RedisStore) NextNonce(ctx context.Context, userID int64) (int64, error) {
	nonce, err := s.client.Incr(ctx, fmt.Sprintf(KeyAccountNonce, userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to advance nonce: %v", err)
	}
	return nonce, nil
}

func (s *RedisStore) CreateRequest(ctx context.Context, req *models.StoredRequest) error {
	id, err := s.client.Incr(ctx, KeyRequestSeq).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate request id: %v", err)
	}
	req.ID = id

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %v", err)
	}

	member := strconv.FormatInt(id, 10)
	score := float64(req.CreatedAt)

	tx := s.client.TxPipeline()
	tx.Set(ctx, fmt.Sprintf(KeyRequest, id), data, 0)
	tx.ZAdd(ctx, KeyPendingRequests, redis.Z{Score: score, Member: member})
	tx.ZAdd(ctx, fmt.Sprintf(KeyUserRequests, req.UserID), redis.Z{Score: score, Member: member})
	if _, err := tx.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save request: %v", err)
	}
	return nil
}

func (s *RedisStore) GetRequest(ctx context.Context, id int64) (*models.StoredRequest, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(KeyRequest, id)).Result()
	if err == redis.Nil {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %v", err)
	}

	var req models.StoredRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %v", err)
	}
	return &req, nil
}

func (s *RedisStore) UserRequests(ctx context.Context, userID int64) ([]*models.StoredRequest, error) {
	ids, err := s.client.ZRevRange(ctx, fmt.Sprintf(KeyUserRequests, userID), 0, MaxHistory-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %v", err)
	}
	return s.bulkGetRequests(ctx, ids)
}

func (s *RedisStore) PendingRequests(ctx context.Context) ([]*models.StoredRequest, error) {
	ids, err := s.client.ZRevRange(ctx, KeyPendingRequests, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %v", err)
	}
	return s.bulkGetRequests(ctx, ids)
}

func (s *RedisStore) bulkGetRequests(ctx context.Context, ids []string) ([]*models.StoredRequest, error) {
	requests := make([]*models.StoredRequest, 0, len(ids))
	if len(ids) == 0 {
		return requests, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, "request:"+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("pipeline execution failed: %v", err)
	}

	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue
		}
		var req models.StoredRequest
		if err := json.Unmarshal([]byte(data), &req); err != nil {
			continue
		}
		requests = append(requests, &req)
	}
	return requests, nil
}

var decideRequestScript = redis.NewScript(`
	local request_key = KEYS[1]
	local pending_key = KEYS[2]
	local balance_key = KEYS[3]
	local decision = ARGV[1]

	local data = redis.call("GET", request_key)
	if not data then
		return redis.error_reply("request not found")
	end

	local req = cjson.decode(data)
	if req.status ~= "pending" then
		return redis.error_reply("request already processed")
	end

	if decision == "approved" then
		local field = "rub"
		if req.currency == "USD" then
			field = "usd"
		end
		local amount = tonumber(req.amount)

		if req.type == "withdraw" then
			local balance = tonumber(redis.call("HGET", balance_key, field) or "0")
			if balance < amount then
				return redis.error_reply("insufficient funds")
			end
			redis.call("HINCRBY", balance_key, field, -amount)
		else
			redis.call("HINCRBY", balance_key, field, amount)
		end
	end

	req.status = decision
	req.processed_by = tonumber(ARGV[2])
	req.processed_at = tonumber(ARGV[3])

	local encoded = cjson.encode(req)
	redis.call("SET", request_key, encoded)
	redis.call("ZREM", pending_key, ARGV[4])

	return encoded
`)

func (s *RedisStore) DecideRequest(ctx context.Context, id int64, decision models.Decision, staffID int64, at time.Time) (*models.StoredRequest, error) {
	existing, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	keys := []string{
		fmt.Sprintf(KeyRequest, id),
		KeyPendingRequests,
		fmt.Sprintf(KeyAccountBalance, existing.UserID),
	}
	data, err := decideRequestScript.Run(ctx, s.client, keys,
		string(decision), staffID, at.UnixMilli(), strconv.FormatInt(id, 10)).Text()
	if err != nil {
		return nil, scriptError(err)
	}

	var req models.StoredRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %v", err)
	}
	return &req, nil
}

var openRoundScript = redis.NewScript(`
	local balance_key = KEYS[1]
	local active_key = KEYS[2]
	local round_key = KEYS[3]
	local active_set = KEYS[4]
	local bet = tonumber(ARGV[1])

	if redis.call("EXISTS", active_key) == 1 then
		return redis.error_reply("a mines round is already in progress")
	end
	if redis.call("EXISTS", balance_key) == 0 then
		return redis.error_reply("account not found")
	end

	local rub = tonumber(redis.call("HGET", balance_key, "rub") or "0")
	if rub < bet then
		return redis.error_reply("insufficient funds")
	end

	rub = redis.call("HINCRBY", balance_key, "rub", -bet)
	redis.call("SET", round_key, ARGV[2], "EX", ARGV[5])
	redis.call("SET", active_key, ARGV[3], "EX", ARGV[5])
	redis.call("ZADD", active_set, ARGV[4], ARGV[3])

	return {rub, tonumber(redis.call("HGET", balance_key, "usd") or "0")}
`)

func (s *RedisStore) OpenRound(ctx context.Context, round *models.MinesRound) (*models.StoredAccount, error) {
	data, err := json.Marshal(round)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal round: %v", err)
	}

	keys := []string{
		fmt.Sprintf(KeyAccountBalance, round.UserID),
		fmt.Sprintf(KeyActiveRound, round.UserID),
		fmt.Sprintf(KeyMinesRound, round.ID),
		KeyActiveRounds,
	}
	balances, err := openRoundScript.Run(ctx, s.client, keys,
		round.BetAmount, data, round.ID, round.UpdatedAt.Unix(), durationToSeconds(TTLMinesRound)).Int64Slice()
	if err != nil {
		return nil, scriptError(err)
	}
	return s.accountWithBalances(ctx, round.UserID, balances)
}

func (s *RedisStore) GetRound(ctx context.Context, id string) (*models.MinesRound, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(KeyMinesRound, id)).Result()
	if err == redis.Nil {
		return nil, ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %v", err)
	}

	var round models.MinesRound
	if err := json.Unmarshal([]byte(data), &round); err != nil {
		return nil, fmt.Errorf("failed to unmarshal round: %v", err)
	}
	return &round, nil
}

func (s *RedisStore) ActiveRound(ctx context.Context, userID int64) (*models.MinesRound, error) {
	id, err := s.client.Get(ctx, fmt.Sprintf(KeyActiveRound, userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active round: %v", err)
	}
	return s.GetRound(ctx, id)
}

var updateRoundScript = redis.NewScript(`
	local round_key = KEYS[1]
	local active_set = KEYS[2]

	local data = redis.call("GET", round_key)
	if not data then
		return redis.error_reply("round not found")
	end
	if cjson.decode(data).status ~= "active" then
		return redis.error_reply("round already finished")
	end

	redis.call("SET", round_key, ARGV[1], "EX", ARGV[4])
	redis.call("ZADD", active_set, ARGV[3], ARGV[2])
	return "OK"
`)

func (s *RedisStore) UpdateRound(ctx context.Context, round *models.MinesRound) error {
	data, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("failed to marshal round: %v", err)
	}

	keys := []string{fmt.Sprintf(KeyMinesRound, round.ID), KeyActiveRounds}
	err = updateRoundScript.Run(ctx, s.client, keys,
		data, round.ID, round.UpdatedAt.Unix(), durationToSeconds(TTLMinesRound)).Err()
	return scriptError(err)
}

var settleRoundScript = redis.NewScript(`
	local round_key = KEYS[1]
	local active_key = KEYS[2]
	local balance_key = KEYS[3]
	local active_set = KEYS[4]
	local payout = tonumber(ARGV[3])

	local data = redis.call("GET", round_key)
	if not data then
		return redis.error_reply("round not found")
	end
	if cjson.decode(data).status ~= "active" then
		return redis.error_reply("round already finished")
	end

	redis.call("SET", round_key, ARGV[1], "EX", ARGV[4])
	redis.call("DEL", active_key)
	redis.call("ZREM", active_set, ARGV[2])
	if payout > 0 then
		redis.call("HINCRBY", balance_key, "rub", payout)
	end
	return {
		tonumber(redis.call("HGET", balance_key, "rub") or "0"),
		tonumber(redis.call("HGET", balance_key, "usd") or "0"),
	}
`)

func (s *RedisStore) SettleRound(ctx context.Context, round *models.MinesRound, payout int64) (*models.StoredAccount, error) {
	data, err := json.Marshal(round)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal round: %v", err)
	}

	keys := []string{
		fmt.Sprintf(KeyMinesRound, round.ID),
		fmt.Sprintf(KeyActiveRound, round.UserID),
		fmt.Sprintf(KeyAccountBalance, round.UserID),
		KeyActiveRounds,
	}
	balances, err := settleRoundScript.Run(ctx, s.client, keys,
		data, round.ID, payout, durationToSeconds(TTLMinesRound)).Int64Slice()
	if err != nil {
		return nil, scriptError(err)
	}
	return s.accountWithBalances(ctx, round.UserID, balances)
}

func (s *RedisStore) StaleRounds(ctx context.Context, before time.Time) ([]*models.MinesRound, error) {
	ids, err := s.client.ZRangeByScore(ctx, KeyActiveRounds, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(before.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list stale rounds: %v", err)
	}

	var rounds []*models.MinesRound
	for _, id := range ids {
		round, err := s.GetRound(ctx, id)
		if errors.Is(err, ErrRoundNotFound) {
			// expired underneath us
			s.client.ZRem(ctx, KeyActiveRounds, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, round)
	}
	return rounds, nil
}

func (s *RedisStore) RecordGame(ctx context.Context, record *models.GameRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal game record: %v", err)
	}

	historyKey := fmt.Sprintf(KeyUserGames, record.UserID)

	tx := s.client.TxPipeline()
	tx.Set(ctx, fmt.Sprintf(KeyGameRecord, record.ID), data, TTLGameRecord)
	tx.ZAdd(ctx, historyKey, redis.Z{Score: float64(record.CreatedAt.UnixMilli()), Member: record.ID})
	tx.ZRemRangeByRank(ctx, historyKey, 0, -(MaxHistory + 1))
	if _, err := tx.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save game record: %v", err)
	}
	return nil
}

func (s *RedisStore) GameHistory(ctx context.Context, userID int64, limit int64) ([]*models.GameRecord, error) {
	if limit <= 0 || limit > MaxHistory {
		limit = 50
	}

	ids, err := s.client.ZRevRange(ctx, fmt.Sprintf(KeyUserGames, userID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get game ids: %v", err)
	}

	records := make([]*models.GameRecord, 0, len(ids))
	if len(ids) == 0 {
		return records, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf(KeyGameRecord, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("pipeline execution failed: %v", err)
	}

	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue
		}
		var record models.GameRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			continue
		}
		records = append(records, &record)
	}
	return records, nil
}

func (s *RedisStore) CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %v", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func parseMinor(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func durationToSeconds(d time.Duration) string {
	return fmt.Sprintf("%.0f", d.Seconds())
}
