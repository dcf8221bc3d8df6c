package server

import (
	"encoding/json"
	"errors"
	"time"

	"timeline-arena/internal/db"
	"timeline-arena/internal/store"

	"github.com/jackc/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// mirror copies one store change into Postgres. The mirror is write-behind:
// gameplay never waits on it, and a nil connection turns it off entirely.
func (s *Server) mirror(gameID, kind string, event store.Event) error {
	if s.db == nil {
		return nil
	}
	switch kind {
	case "game":
		return s.persistGame(gameID, event.Doc.Data)
	case "player":
		return s.persistPlayer(gameID, event.Doc)
	case "round":
		return s.persistRound(gameID, event.Doc)
	case "submission":
		return s.persistSubmission(gameID, event.Doc)
	default:
		return nil
	}
}

func (s *Server) persistGame(gameID string, data map[string]any) error {
	var existing db.Game
	err := s.db.Where("game_id = ?", gameID).First(&existing).Error
	notFound := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !notFound {
		return err
	}

	status := fieldString(data, "status")
	record := db.Game{
		GameID:       gameID,
		ShortCode:    fieldString(data, "shortCode"),
		Status:       status,
		Mode:         fieldString(data, "mode"),
		HostID:       fieldString(data, "hostId"),
		DeckSeed:     fieldInt(data, "deckSeed"),
		TotalCards:   fieldInt(data, "totalCards"),
		MaxPlayers:   fieldInt(data, "maxPlayers"),
		PlayersCount: fieldInt(data, "playersCount"),
		AliveCount:   fieldInt(data, "aliveCount"),
	}
	if startsAt, ok := data["startsAt"].(time.Time); ok {
		record.StartsAt = &startsAt
	}

	if notFound {
		if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
			if !isUniqueViolation(err) {
				return err
			}
		}
		return s.persistEvent(gameID, "game_created", map[string]any{
			"gameId":    gameID,
			"shortCode": record.ShortCode,
			"mode":      record.Mode,
		})
	}

	updates := map[string]any{
		"status":        record.Status,
		"total_cards":   record.TotalCards,
		"players_count": record.PlayersCount,
		"alive_count":   record.AliveCount,
	}
	if err := s.db.Model(&db.Game{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		return err
	}
	if status != existing.Status {
		return s.persistEvent(gameID, "status_changed", map[string]any{
			"from": existing.Status,
			"to":   status,
		})
	}
	return nil
}

func (s *Server) persistPlayer(gameID string, doc store.Doc) error {
	gameDBID, err := s.gameDBID(gameID)
	if err != nil || gameDBID == 0 {
		return err
	}
	data := doc.Data
	record := db.Player{
		GameID:        gameDBID,
		PlayerID:      doc.ID(),
		DisplayName:   fieldString(data, "displayName"),
		Avatar:        fieldString(data, "avatar"),
		IsHost:        fieldBool(data, "isHost"),
		IsEliminated:  fieldBool(data, "isEliminated"),
		Lives:         fieldInt(data, "lives"),
		Score:         fieldInt(data, "score"),
		AvgResponseMs: fieldFloat(data, "avgResponseMs"),
		JoinedAt:      fieldTime(data, "joinedAt"),
		LastSeenAt:    fieldTime(data, "lastSeenAt"),
	}
	err = s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "game_id"}, {Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "avatar", "is_eliminated", "lives", "score",
			"avg_response_ms", "last_seen_at",
		}),
	}).Create(&record).Error
	if err != nil && isUniqueViolation(err) {
		return nil
	}
	return err
}

func (s *Server) persistRound(gameID string, doc store.Doc) error {
	gameDBID, err := s.gameDBID(gameID)
	if err != nil || gameDBID == 0 {
		return err
	}
	data := doc.Data
	timeline, err := json.Marshal(fieldStrings(data, "timelineBefore"))
	if err != nil {
		return err
	}
	record := db.Round{
		GameID:          gameDBID,
		Number:          fieldInt(data, "roundIndex"),
		CardID:          fieldString(data, "cardId"),
		CardIndex:       fieldInt(data, "cardIndex"),
		Resolved:        fieldBool(data, "resolved"),
		CorrectPosition: -1,
		TimelineBefore:  datatypes.JSON(timeline),
		RoundStartsAt:   fieldTime(data, "roundStartsAt"),
		RoundEndsAt:     fieldTime(data, "roundEndsAt"),
	}
	if position, ok := data["correctPosition"]; ok {
		record.CorrectPosition = toInt(position)
	}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}, {Name: "number"}},
		DoUpdates: clause.AssignmentColumns([]string{"resolved", "correct_position"}),
	}).Create(&record).Error
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	if record.Resolved {
		return s.persistEvent(gameID, "round_resolved", map[string]any{
			"roundIndex":      record.Number,
			"correctPosition": record.CorrectPosition,
		})
	}
	return nil
}

func (s *Server) persistSubmission(gameID string, doc store.Doc) error {
	gameDBID, err := s.gameDBID(gameID)
	if err != nil || gameDBID == 0 {
		return err
	}
	data := doc.Data

	var round db.Round
	if err := s.db.Where("game_id = ? AND number = ?", gameDBID, fieldInt(data, "roundIndex")).
		First(&round).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	var player db.Player
	if err := s.db.Where("game_id = ? AND player_id = ?", gameDBID, fieldString(data, "playerId")).
		First(&player).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	record := db.Submission{
		RoundID:       round.ID,
		PlayerID:      player.ID,
		PositionIndex: fieldInt(data, "positionIndex"),
		IsCorrect:     fieldBool(data, "isCorrect"),
		LatencyMs:     fieldFloat(data, "latencyMs"),
		SubmittedAt:   fieldTime(data, "submittedAt"),
	}
	err = s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
	if err != nil && isUniqueViolation(err) {
		return nil
	}
	return err
}

func (s *Server) persistEvent(gameID, eventType string, payload map[string]any) error {
	gameDBID, err := s.gameDBID(gameID)
	if err != nil || gameDBID == 0 {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := db.Event{
		GameID:  gameDBID,
		Type:    eventType,
		Payload: datatypes.JSON(data),
	}
	return s.db.Create(&event).Error
}

func (s *Server) gameDBID(gameID string) (uint, error) {
	var record db.Game
	if err := s.db.Where("game_id = ?", gameID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return record.ID, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func fieldString(data map[string]any, key string) string {
	value, _ := data[key].(string)
	return value
}

func fieldBool(data map[string]any, key string) bool {
	value, _ := data[key].(bool)
	return value
}

func fieldInt(data map[string]any, key string) int {
	return toInt(data[key])
}

func toInt(value any) int {
	switch n := value.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func fieldFloat(data map[string]any, key string) float64 {
	switch n := data[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func fieldTime(data map[string]any, key string) time.Time {
	value, _ := data[key].(time.Time)
	return value
}

func fieldStrings(data map[string]any, key string) []string {
	switch list := data[key].(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}
