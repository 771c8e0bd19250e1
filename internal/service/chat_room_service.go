package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/quocanhngo/lighttalk/internal/apperror"
	"github.com/quocanhngo/lighttalk/internal/model"
	"github.com/quocanhngo/lighttalk/internal/repository"
	"gorm.io/gorm"
)

const (
	// DefaultGroupMaxMembers caps group rooms when no limit is configured
	DefaultGroupMaxMembers = 100
	maxRoomNameLength      = 100
)

// ChatRoomService manages rooms, membership and roles.
//
// Every mutation of a room runs in one transaction while holding the room's
// in-process lock and, on PostgreSQL, a row lock on the room. Events are
// emitted only after the transaction committed.
type ChatRoomService struct {
	store           *repository.Store
	notifier        Notifier
	views           roomViewBuilder
	locks           *keyedMutex
	groupMaxMembers int
	now             func() time.Time
	logger          *slog.Logger

	// afterCapacityCheck runs inside InviteMembers between the capacity
	// check and the first insert; nil outside tests
	afterCapacityCheck func(roomID int64)
}

func NewChatRoomService(store *repository.Store, notifier Notifier, presence OnlineChecker, groupMaxMembers int, opts ...Option) *ChatRoomService {
	o := buildOptions(opts)
	if groupMaxMembers <= 0 {
		groupMaxMembers = DefaultGroupMaxMembers
	}
	return &ChatRoomService{
		store:           store,
		notifier:        notifier,
		views:           roomViewBuilder{presence: presence, logger: o.logger},
		locks:           newKeyedMutex(),
		groupMaxMembers: groupMaxMembers,
		now:             o.now,
		logger:          o.logger,
	}
}

func roomLockKey(roomID int64) string {
	return "room:" + strconv.FormatInt(roomID, 10)
}

func directLockKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("direct:%d:%d", a, b)
}

// ─── Direct Chat ──────────────────────────────────────────────

// CreateDirectChat returns the direct room of the two users, creating it on
// first use. Members who left an existing room are brought back.
func (s *ChatRoomService) CreateDirectChat(ctx context.Context, userID, targetUserID int64) (*model.ChatRoomResponse, error) {
	if userID == targetUserID {
		return nil, apperror.InvalidInput.WithMessage("cannot start a direct chat with yourself")
	}

	unlock := s.locks.Lock(directLockKey(userID, targetUserID))
	defer unlock()

	now := s.now()
	var roomID int64
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.LockKey(ctx, directLockKey(userID, targetUserID)); err != nil {
			return err
		}
		existing, err := tx.Rooms.FindDirectBetween(ctx, userID, targetUserID)
		if err == nil {
			roomID = existing.ID
			members, err := tx.Members.FindByRoomAndUsers(ctx, existing.ID, []int64{userID, targetUserID})
			if err != nil {
				return err
			}
			for _, m := range members {
				if m.IsActive() {
					continue
				}
				if err := tx.Members.Reactivate(ctx, m.ID, now); err != nil {
					return err
				}
				s.logger.Info("direct chat member reactivated", "chat_room_id", existing.ID, "user_id", m.UserID)
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		users, err := tx.Users.FindByIDs(ctx, []int64{userID, targetUserID})
		if err != nil {
			return err
		}
		if users[userID] == nil {
			return apperror.UserNotFound
		}
		if users[targetUserID] == nil {
			return apperror.UserNotFound.WithMessage("target user not found")
		}

		room := &model.ChatRoom{
			Type:       model.ChatRoomTypeDirect,
			MaxMembers: model.DirectChatMaxMembers,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.Rooms.Create(ctx, room); err != nil {
			return err
		}
		roomID = room.ID

		return tx.Members.Create(ctx,
			&model.ChatMember{ChatRoomID: room.ID, UserID: userID, Role: model.MemberRoleMember, JoinedAt: now},
			&model.ChatMember{ChatRoomID: room.ID, UserID: targetUserID, Role: model.MemberRoleMember, JoinedAt: now},
		)
	})
	if err != nil {
		return nil, err
	}

	return s.GetChatRoom(ctx, roomID, userID)
}

// ─── Group Chat ──────────────────────────────────────────────

// CreateGroupChat creates a group owned by ownerID with the given members
func (s *ChatRoomService) CreateGroupChat(ctx context.Context, ownerID int64, name string, memberIDs []int64, imageURL *string) (*model.ChatRoomResponse, error) {
	name, err := normalizeRoomName(name)
	if err != nil {
		return nil, err
	}

	ids := uniqueIDs(memberIDs, ownerID)
	if len(ids) == 0 {
		return nil, apperror.GroupChatMinMembers
	}
	if len(ids)+1 > s.groupMaxMembers {
		return nil, apperror.GroupChatMaxMembers
	}

	now := s.now()
	var room *model.ChatRoom
	var joined []model.ChatMemberInfo
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		users, err := tx.Users.FindByIDs(ctx, append([]int64{ownerID}, ids...))
		if err != nil {
			return err
		}
		if err := requireUsers(users, ownerID, ids); err != nil {
			return err
		}

		room = &model.ChatRoom{
			Type:       model.ChatRoomTypeGroup,
			Name:       &name,
			ImageURL:   imageURL,
			OwnerID:    &ownerID,
			MaxMembers: s.groupMaxMembers,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.Rooms.Create(ctx, room); err != nil {
			return err
		}

		members := make([]*model.ChatMember, 0, len(ids)+1)
		members = append(members, &model.ChatMember{ChatRoomID: room.ID, UserID: ownerID, Role: model.MemberRoleOwner, JoinedAt: now})
		for _, id := range ids {
			members = append(members, &model.ChatMember{ChatRoomID: room.ID, UserID: id, Role: model.MemberRoleMember, JoinedAt: now})
		}
		if err := tx.Members.Create(ctx, members...); err != nil {
			return err
		}
		for _, m := range members {
			joined = append(joined, memberInfo(*m, users[m.UserID], false))
		}

		return createSystemMessage(ctx, tx, room.ID, ownerID, now,
			fmt.Sprintf("%s님이 그룹을 만들었습니다.", users[ownerID].Nickname))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("group chat created", "chat_room_id", room.ID, "owner_id", ownerID, "members", len(joined))
	s.notifier.NotifyMemberJoined(ctx, room.ID, joined)

	return s.GetChatRoom(ctx, room.ID, ownerID)
}

// InviteMembers adds users to a group. Users already in the room are
// skipped and users who left are brought back as MEMBER.
func (s *ChatRoomService) InviteMembers(ctx context.Context, roomID, inviterID int64, memberIDs []int64) (*model.ChatRoomResponse, error) {
	unlock := s.locks.Lock(roomLockKey(roomID))
	defer unlock()

	now := s.now()
	var joined []model.ChatMemberInfo
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		room, err := s.lockGroup(ctx, tx, roomID)
		if err != nil {
			return err
		}

		inviter, err := tx.Members.FindActive(ctx, roomID, inviterID)
		if err != nil {
			return notFound(err, apperror.NotChatMember)
		}
		if !inviter.Role.CanManage() {
			return apperror.NotChatAdmin
		}

		ids := uniqueIDs(memberIDs, 0)
		existingRows, err := tx.Members.FindByRoomAndUsers(ctx, roomID, ids)
		if err != nil {
			return err
		}
		existing := make(map[int64]model.ChatMember, len(existingRows))
		for _, m := range existingRows {
			existing[m.UserID] = m
		}

		newIDs := make([]int64, 0, len(ids))
		for _, id := range ids {
			if m, ok := existing[id]; ok && m.IsActive() {
				continue
			}
			newIDs = append(newIDs, id)
		}
		if len(newIDs) == 0 {
			return nil
		}

		active, err := tx.Members.CountActive(ctx, roomID)
		if err != nil {
			return err
		}
		if int(active)+len(newIDs) > room.MaxMembers {
			return apperror.GroupChatMaxMembers
		}
		if s.afterCapacityCheck != nil {
			s.afterCapacityCheck(roomID)
		}

		users, err := tx.Users.FindByIDs(ctx, append([]int64{inviterID}, newIDs...))
		if err != nil {
			return err
		}
		if err := requireUsers(users, inviterID, newIDs); err != nil {
			return err
		}

		names := make([]string, 0, len(newIDs))
		for _, id := range newIDs {
			if m, ok := existing[id]; ok {
				if err := tx.Members.Reactivate(ctx, m.ID, now); err != nil {
					return err
				}
			} else {
				err := tx.Members.Create(ctx, &model.ChatMember{ChatRoomID: roomID, UserID: id, Role: model.MemberRoleMember, JoinedAt: now})
				if err != nil {
					return err
				}
			}
			joined = append(joined, memberInfo(model.ChatMember{UserID: id, Role: model.MemberRoleMember, JoinedAt: now}, users[id], false))
			names = append(names, users[id].Nickname)
		}

		return createSystemMessage(ctx, tx, roomID, inviterID, now,
			fmt.Sprintf("%s님이 %s님을 초대했습니다.", users[inviterID].Nickname, strings.Join(names, ", ")))
	})
	if err != nil {
		return nil, err
	}

	if len(joined) > 0 {
		s.logger.Info("members invited", "chat_room_id", roomID, "inviter_id", inviterID, "count", len(joined))
		s.notifier.NotifyMemberJoined(ctx, roomID, joined)
	}

	return s.GetChatRoom(ctx, roomID, inviterID)
}

// RemoveMember lets the owner kick another active member
func (s *ChatRoomService) RemoveMember(ctx context.Context, roomID, requesterID, targetID int64) (*model.ChatRoomResponse, error) {
	unlock := s.locks.Lock(roomLockKey(roomID))
	defer unlock()

	now := s.now()
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := s.lockGroup(ctx, tx, roomID); err != nil {
			return err
		}

		requester, err := tx.Members.FindActive(ctx, roomID, requesterID)
		if err != nil {
			return notFound(err, apperror.NotChatMember)
		}
		if requester.Role != model.MemberRoleOwner {
			return apperror.NotChatOwner
		}
		if requesterID == targetID {
			return apperror.InvalidInput.WithMessage("cannot remove yourself")
		}

		target, err := tx.Members.FindActive(ctx, roomID, targetID)
		if err != nil {
			return notFound(err, apperror.NotChatMember.WithMessage("target user is not a member of this chat room"))
		}

		users, err := tx.Users.FindByIDs(ctx, []int64{requesterID, targetID})
		if err != nil {
			return err
		}

		if err := tx.Members.MarkLeft(ctx, target.ID, now); err != nil {
			return err
		}
		return createSystemMessage(ctx, tx, roomID, requesterID, now,
			fmt.Sprintf("%s님이 %s님을 내보냈습니다.", nickname(users, requesterID), nickname(users, targetID)))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("member removed", "chat_room_id", roomID, "user_id", targetID, "by", requesterID)
	s.notifier.NotifyMemberLeft(ctx, roomID, targetID, nil)

	return s.GetChatRoom(ctx, roomID, requesterID)
}

// LeaveRoom soft-leaves a room. When the owner of a group leaves, ownership
// passes to the best ranked remaining member in the same transaction; with
// nobody left the room stays without an owner.
func (s *ChatRoomService) LeaveRoom(ctx context.Context, roomID, userID int64) error {
	unlock := s.locks.Lock(roomLockKey(roomID))
	defer unlock()

	now := s.now()
	var isGroup bool
	var newOwnerID *int64
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		room, err := tx.Rooms.FindByIDForUpdate(ctx, roomID)
		if err != nil {
			return notFound(err, apperror.ChatRoomNotFound)
		}

		member, err := tx.Members.FindActive(ctx, roomID, userID)
		if err != nil {
			return notFound(err, apperror.NotChatMember)
		}

		if !room.IsGroup() {
			return tx.Members.MarkLeft(ctx, member.ID, now)
		}
		isGroup = true

		var successor *model.ChatMember
		if member.Role == model.MemberRoleOwner {
			others, err := tx.Members.FindActiveByRoom(ctx, roomID)
			if err != nil {
				return err
			}
			successor = nextOwner(others, userID)
		}

		ids := []int64{userID}
		if successor != nil {
			ids = append(ids, successor.UserID)
		}
		users, err := tx.Users.FindByIDs(ctx, ids)
		if err != nil {
			return err
		}

		if member.Role == model.MemberRoleOwner {
			if successor != nil {
				if err := tx.Members.UpdateRole(ctx, successor.ID, model.MemberRoleOwner); err != nil {
					return err
				}
				newOwnerID = &successor.UserID
				if err := tx.Rooms.UpdateOwner(ctx, roomID, newOwnerID); err != nil {
					return err
				}
				err := createSystemMessage(ctx, tx, roomID, userID, now,
					fmt.Sprintf("%s님이 새로운 방장이 되었습니다.", nickname(users, successor.UserID)))
				if err != nil {
					return err
				}
			} else if err := tx.Rooms.UpdateOwner(ctx, roomID, nil); err != nil {
				return err
			}
		}

		if err := tx.Members.MarkLeft(ctx, member.ID, now); err != nil {
			return err
		}
		return createSystemMessage(ctx, tx, roomID, userID, now,
			fmt.Sprintf("%s님이 나갔습니다.", nickname(users, userID)))
	})
	if err != nil {
		return err
	}

	s.logger.Info("member left", "chat_room_id", roomID, "user_id", userID)
	if !isGroup {
		return nil
	}
	if newOwnerID != nil {
		s.logger.Info("ownership passed on", "chat_room_id", roomID, "from", userID, "to", *newOwnerID)
		s.notifier.NotifyRoleChanged(ctx, roomID, *newOwnerID, model.MemberRoleOwner)
	}
	s.notifier.NotifyMemberLeft(ctx, roomID, userID, newOwnerID)
	return nil
}

// UpdateRoom changes the name and/or image of a group. Nil fields are kept.
func (s *ChatRoomService) UpdateRoom(ctx context.Context, roomID, userID int64, name, imageURL *string) (*model.ChatRoomResponse, error) {
	if name != nil {
		normalized, err := normalizeRoomName(*name)
		if err != nil {
			return nil, err
		}
		name = &normalized
	}

	unlock := s.locks.Lock(roomLockKey(roomID))
	defer unlock()

	now := s.now()
	var finalName, finalImage *string
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		room, err := s.lockGroup(ctx, tx, roomID)
		if err != nil {
			return err
		}

		member, err := tx.Members.FindActive(ctx, roomID, userID)
		if err != nil {
			return notFound(err, apperror.NotChatMember)
		}
		if !member.Role.CanManage() {
			return apperror.NotChatAdmin
		}

		if err := tx.Rooms.UpdateDetails(ctx, roomID, name, imageURL); err != nil {
			return err
		}

		finalName, finalImage = room.Name, room.ImageURL
		if imageURL != nil {
			finalImage = imageURL
		}
		if name == nil || *name == room.DisplayName() {
			return nil
		}
		finalName = name

		users, err := tx.Users.FindByIDs(ctx, []int64{userID})
		if err != nil {
			return err
		}
		return createSystemMessage(ctx, tx, roomID, userID, now,
			fmt.Sprintf("%s님이 방 이름을 '%s'(으)로 변경했습니다.", nickname(users, userID), *name))
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyChatRoomUpdated(ctx, roomID, finalName, finalImage)
	return s.GetChatRoom(ctx, roomID, userID)
}

// ChangeRole lets the owner change another member's role. Granting OWNER
// transfers ownership and demotes the current owner to ADMIN.
func (s *ChatRoomService) ChangeRole(ctx context.Context, roomID, requesterID, targetID int64, newRole string) (*model.ChatRoomResponse, error) {
	unlock := s.locks.Lock(roomLockKey(roomID))
	defer unlock()

	now := s.now()
	var role model.MemberRole
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := s.lockGroup(ctx, tx, roomID); err != nil {
			return err
		}

		requester, err := tx.Members.FindActive(ctx, roomID, requesterID)
		if err != nil {
			return notFound(err, apperror.NotChatMember)
		}
		if requester.Role != model.MemberRoleOwner {
			return apperror.NotChatOwner
		}
		if requesterID == targetID {
			return apperror.CannotChangeOwnRole
		}

		var ok bool
		role, ok = model.ParseMemberRole(strings.ToUpper(strings.TrimSpace(newRole)))
		if !ok {
			return apperror.InvalidRole
		}

		target, err := tx.Members.FindActive(ctx, roomID, targetID)
		if err != nil {
			return notFound(err, apperror.NotChatMember.WithMessage("target user is not a member of this chat room"))
		}

		if role != model.MemberRoleOwner {
			return tx.Members.UpdateRole(ctx, target.ID, role)
		}

		if err := tx.Members.UpdateRole(ctx, requester.ID, model.MemberRoleAdmin); err != nil {
			return err
		}
		if err := tx.Members.UpdateRole(ctx, target.ID, model.MemberRoleOwner); err != nil {
			return err
		}
		if err := tx.Rooms.UpdateOwner(ctx, roomID, &targetID); err != nil {
			return err
		}
		users, err := tx.Users.FindByIDs(ctx, []int64{targetID})
		if err != nil {
			return err
		}
		return createSystemMessage(ctx, tx, roomID, requesterID, now,
			fmt.Sprintf("%s님에게 방장을 위임했습니다.", nickname(users, targetID)))
	})
	if err != nil {
		return nil, err
	}

	if role == model.MemberRoleOwner {
		s.logger.Info("ownership transferred", "chat_room_id", roomID, "from", requesterID, "to", targetID)
		s.notifier.NotifyRoleChanged(ctx, roomID, requesterID, model.MemberRoleAdmin)
	}
	s.notifier.NotifyRoleChanged(ctx, roomID, targetID, role)

	return s.GetChatRoom(ctx, roomID, requesterID)
}

// ─── Read operations ─────────────────────────────────────────

// GetMyChatRooms lists the caller's rooms, most recently active first
func (s *ChatRoomService) GetMyChatRooms(ctx context.Context, userID int64) ([]model.ChatRoomResponse, error) {
	memberships, err := s.store.Members.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	byRoom := make(map[int64]model.ChatMember, len(memberships))
	roomIDs := make([]int64, 0, len(memberships))
	for _, m := range memberships {
		byRoom[m.ChatRoomID] = m
		roomIDs = append(roomIDs, m.ChatRoomID)
	}

	rooms, err := s.store.Rooms.FindByIDs(ctx, roomIDs)
	if err != nil {
		return nil, err
	}

	views, err := s.views.build(ctx, s.store, rooms, byRoom)
	if err != nil {
		return nil, err
	}
	sortByActivity(views)
	return views, nil
}

// GetChatRoom returns one room as seen by an active member
func (s *ChatRoomService) GetChatRoom(ctx context.Context, roomID, userID int64) (*model.ChatRoomResponse, error) {
	room, err := s.store.Rooms.FindByID(ctx, roomID)
	if err != nil {
		return nil, notFound(err, apperror.ChatRoomNotFound)
	}

	member, err := s.store.Members.FindActive(ctx, roomID, userID)
	if err != nil {
		return nil, notFound(err, apperror.NotChatMember)
	}

	views, err := s.views.build(ctx, s.store, []model.ChatRoom{*room}, map[int64]model.ChatMember{roomID: *member})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ─── helpers ─────────────────────────────────────────────────

// lockGroup row-locks the room and rejects direct rooms
func (s *ChatRoomService) lockGroup(ctx context.Context, tx *repository.Store, roomID int64) (*model.ChatRoom, error) {
	room, err := tx.Rooms.FindByIDForUpdate(ctx, roomID)
	if err != nil {
		return nil, notFound(err, apperror.ChatRoomNotFound)
	}
	if !room.IsGroup() {
		return nil, apperror.CannotModifyDirectChat
	}
	return room, nil
}

// nextOwner picks the successor of leavingUserID: admins before members,
// then earliest join, then lowest membership id
func nextOwner(members []model.ChatMember, leavingUserID int64) *model.ChatMember {
	candidates := make([]model.ChatMember, 0, len(members))
	for _, m := range members {
		if m.UserID == leavingUserID || !m.IsActive() {
			continue
		}
		if _, ok := m.Role.SuccessionRank(); ok {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, _ := candidates[i].Role.SuccessionRank()
		rj, _ := candidates[j].Role.SuccessionRank()
		if ri != rj {
			return ri < rj
		}
		if !candidates[i].JoinedAt.Equal(candidates[j].JoinedAt) {
			return candidates[i].JoinedAt.Before(candidates[j].JoinedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})
	return &candidates[0]
}

func normalizeRoomName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.GroupChatNameRequired
	}
	if utf8.RuneCountInString(name) > maxRoomNameLength {
		return "", apperror.InvalidInput.WithMessage(fmt.Sprintf("room name must be at most %d characters", maxRoomNameLength))
	}
	return name, nil
}

// uniqueIDs removes duplicates, non-positive ids and exclude, keeping order
func uniqueIDs(ids []int64, exclude int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || id == exclude || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func requireUsers(users map[int64]*model.User, actorID int64, ids []int64) error {
	if users[actorID] == nil {
		return apperror.UserNotFound
	}
	for _, id := range ids {
		if users[id] == nil {
			return apperror.UserNotFound.WithMessage(fmt.Sprintf("user %d not found", id))
		}
	}
	return nil
}

func createSystemMessage(ctx context.Context, tx *repository.Store, roomID, actorID int64, at time.Time, content string) error {
	return tx.Messages.Create(ctx, &model.Message{
		ChatRoomID: roomID,
		SenderID:   actorID,
		Content:    content,
		Type:       model.MessageTypeSystem,
		CreatedAt:  at,
	})
}
