package service

import (
	"context"
	"log/slog"
	"sort"

	"github.com/quocanhngo/lighttalk/internal/model"
	"github.com/quocanhngo/lighttalk/internal/repository"
)

const unknownNickname = "Unknown"

// roomViewBuilder assembles ChatRoomResponse values with a fixed number of
// queries regardless of how many rooms are listed
type roomViewBuilder struct {
	presence OnlineChecker
	logger   *slog.Logger
}

// build returns one view per room in the order of rooms. memberships holds
// the caller's active membership per room id.
func (b roomViewBuilder) build(ctx context.Context, store *repository.Store, rooms []model.ChatRoom, memberships map[int64]model.ChatMember) ([]model.ChatRoomResponse, error) {
	if len(rooms) == 0 {
		return []model.ChatRoomResponse{}, nil
	}

	roomIDs := make([]int64, len(rooms))
	for i, r := range rooms {
		roomIDs[i] = r.ID
	}

	members, err := store.Members.FindActiveByRooms(ctx, roomIDs)
	if err != nil {
		return nil, err
	}

	userIDs := make([]int64, 0, len(members))
	seen := make(map[int64]bool, len(members))
	for _, m := range members {
		if !seen[m.UserID] {
			seen[m.UserID] = true
			userIDs = append(userIDs, m.UserID)
		}
	}

	users, err := store.Users.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	lastMessages, err := store.Messages.FindLastByRoomIDs(ctx, roomIDs)
	if err != nil {
		return nil, err
	}

	mine := make([]model.ChatMember, 0, len(memberships))
	for _, m := range memberships {
		mine = append(mine, m)
	}
	unread, err := store.Messages.CountUnreadBatch(ctx, mine)
	if err != nil {
		return nil, err
	}

	online := b.online(ctx, userIDs)

	membersByRoom := make(map[int64][]model.ChatMemberInfo, len(rooms))
	for _, m := range members {
		membersByRoom[m.ChatRoomID] = append(membersByRoom[m.ChatRoomID], memberInfo(m, users[m.UserID], online[m.UserID]))
	}

	views := make([]model.ChatRoomResponse, 0, len(rooms))
	for _, room := range rooms {
		view := model.ChatRoomResponse{
			ID:          room.ID,
			Type:        room.Type,
			Name:        room.Name,
			ImageURL:    room.ImageURL,
			OwnerID:     room.OwnerID,
			MaxMembers:  room.MaxMembers,
			Members:     membersByRoom[room.ID],
			UnreadCount: unread[room.ID],
		}
		if view.Members == nil {
			view.Members = []model.ChatMemberInfo{}
		}
		// a rejoined member must not see what was sent before the rejoin
		if last, ok := lastMessages[room.ID]; ok && !last.CreatedAt.Before(memberships[room.ID].JoinedAt) {
			view.LastMessage = &model.LastMessageInfo{
				ID:        last.ID,
				Content:   last.VisibleContent(),
				SenderID:  last.SenderID,
				Type:      last.Type,
				CreatedAt: last.CreatedAt,
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (b roomViewBuilder) online(ctx context.Context, userIDs []int64) map[int64]bool {
	if b.presence == nil {
		return map[int64]bool{}
	}
	online, err := b.presence.OnlineAmong(ctx, userIDs)
	if err != nil {
		b.logger.Warn("presence lookup failed", "error", err)
		return map[int64]bool{}
	}
	return online
}

// sortByActivity orders rooms by their last visible message, newest first.
// Rooms without one go last, newest room first.
func sortByActivity(views []model.ChatRoomResponse) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i].LastMessage, views[j].LastMessage
		switch {
		case a == nil && b == nil:
			return views[i].ID > views[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.CreatedAt.Equal(b.CreatedAt):
			return a.ID > b.ID
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

func memberInfo(m model.ChatMember, user *model.User, online bool) model.ChatMemberInfo {
	info := model.ChatMemberInfo{
		UserID:   m.UserID,
		Nickname: unknownNickname,
		Role:     m.Role,
		JoinedAt: m.JoinedAt,
		Online:   online,
	}
	if user != nil {
		info.Nickname = user.Nickname
		info.ProfileImageURL = user.ProfileImageURL
	}
	return info
}

func nickname(users map[int64]*model.User, id int64) string {
	if u, ok := users[id]; ok {
		return u.Nickname
	}
	return unknownNickname
}
