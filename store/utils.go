package store

import (
	"sort"
)

func findChat(db *Database, chatID string) *Chat {
	for _, chat := range db.Chats {
		if chat.ID == chatID {
			return chat
		}
	}
	return nil
}

func findUser(db *Database, match func(*User) bool) *User {
	for _, user := range db.Users {
		if match(user) {
			return user
		}
	}
	return nil
}

// pruneSessions drops the sessions of userID, keeping only its `keep` most recent.
func pruneSessions(db *Database, userID string, keep int) {
	var owned, others []*Session
	for _, session := range db.Sessions {
		if session.UserID == userID {
			owned = append(owned, session)
		} else {
			others = append(others, session)
		}
	}
	if len(owned) <= keep {
		return
	}
	sort.SliceStable(owned, func(i, j int) bool { return owned[i].CreatedAt.After(owned[j].CreatedAt) })
	if keep < 0 {
		keep = 0
	}
	db.Sessions = append(others, owned[:keep]...)
}
