package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"census/internal/citizens/models"
)

const (
	// Sorted set of import ids, scored by id.
	importsKey = "census:imports"
	// Hash per import: field = citizen id, value = citizen JSON.
	importKeyPrefix = "census:import:"

	maxCreateAttempts = 10
)

// updateScript rewrites a citizen only when it is already part of the import.
var updateScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// RedisStore keeps each import as one hash of JSON documents.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func importKey(importID int64) string {
	return importKeyPrefix + strconv.FormatInt(importID, 10)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return unavailable(s.client.Ping(ctx).Err())
}

func (s *RedisStore) ListImportIDs(ctx context.Context) ([]int64, error) {
	members, err := s.client.ZRange(ctx, importsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse import id %q: %w", m, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *RedisStore) ImportExists(ctx context.Context, importID int64) (bool, error) {
	_, err := s.client.ZScore(ctx, importsKey, strconv.FormatInt(importID, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check import %d: %w", importID, err)
	}
	return true, nil
}

// CreateImport picks max(id)+1 under WATCH on the id set and writes the hash
// and the id in one MULTI block. A concurrent creator makes the transaction
// fail and the allocation is retried.
func (s *RedisStore) CreateImport(ctx context.Context, citizens []models.Citizen) (int64, error) {
	if err := checkUnique(citizens); err != nil {
		return 0, fmt.Errorf("create import: %w", err)
	}
	fields := make(map[string]any, len(citizens))
	for _, c := range citizens {
		doc, err := json.Marshal(c.Clone())
		if err != nil {
			return 0, fmt.Errorf("encode citizen %d: %w", c.ID, err)
		}
		fields[strconv.FormatInt(c.ID, 10)] = doc
	}

	for range maxCreateAttempts {
		var importID int64
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			top, err := rtx.ZRevRangeWithScores(ctx, importsKey, 0, 0).Result()
			if err != nil {
				return err
			}
			importID = 1
			if len(top) > 0 {
				importID = int64(top[0].Score) + 1
			}
			_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, importKey(importID), fields)
				pipe.ZAdd(ctx, importsKey, redis.Z{Score: float64(importID), Member: strconv.FormatInt(importID, 10)})
				return nil
			})
			return err
		}, importsKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("create import: %w", err)
		}
		return importID, nil
	}
	return 0, fmt.Errorf("create import: %w", ErrConflict)
}

func (s *RedisStore) GetCitizen(ctx context.Context, importID, citizenID int64) (*models.Citizen, error) {
	doc, err := s.client.HGet(ctx, importKey(importID), strconv.FormatInt(citizenID, 10)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get citizen %d/%d: %w", importID, citizenID, err)
	}
	return decodeCitizen(doc)
}

func (s *RedisStore) ListCitizens(ctx context.Context, importID int64) ([]models.Citizen, error) {
	docs, err := s.client.HVals(ctx, importKey(importID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list citizens of %d: %w", importID, err)
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	citizens := make([]models.Citizen, 0, len(docs))
	for _, doc := range docs {
		c, err := decodeCitizen([]byte(doc))
		if err != nil {
			return nil, err
		}
		citizens = append(citizens, *c)
	}
	sortByID(citizens)
	return citizens, nil
}

func (s *RedisStore) CitizenExists(ctx context.Context, importID, citizenID int64) (bool, error) {
	ok, err := s.client.HExists(ctx, importKey(importID), strconv.FormatInt(citizenID, 10)).Result()
	if err != nil {
		return false, fmt.Errorf("check citizen %d/%d: %w", importID, citizenID, err)
	}
	return ok, nil
}

func (s *RedisStore) UpdateCitizen(ctx context.Context, importID int64, c models.Citizen) error {
	doc, err := json.Marshal(c.Clone())
	if err != nil {
		return fmt.Errorf("encode citizen %d: %w", c.ID, err)
	}
	updated, err := updateScript.Run(ctx, s.client,
		[]string{importKey(importID)}, strconv.FormatInt(c.ID, 10), doc).Int()
	if err != nil {
		return fmt.Errorf("update citizen %d/%d: %w", importID, c.ID, err)
	}
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeCitizen(doc []byte) (*models.Citizen, error) {
	var c models.Citizen
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("decode citizen: %w", err)
	}
	c.Relatives = nonNil(c.Relatives)
	return &c, nil
}
