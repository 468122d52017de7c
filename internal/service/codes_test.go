package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coursebooking/course_backend/internal/hash"
	"github.com/coursebooking/course_backend/internal/models"
)

func TestPasswordResetFlow(t *testing.T) {
	db := testDB(t)
	sender := &fakeSender{}
	svc := newCodeService(db, sender)
	ctx := context.Background()

	user := createUser(t, db, "reset@example.com", "+4400000001", "old-password")

	require.NoError(t, svc.IssuePasswordResetCode(ctx, user.Email))
	require.Len(t, sender.sent, 1)
	require.Equal(t, user.Email, sender.sent[0].To)
	require.Equal(t, "Reset password code", sender.sent[0].Subject)

	code := sender.sent[0].Text
	require.Len(t, code, 32)
	require.Contains(t, sender.sent[0].HTML, code)

	updated, pair, err := svc.RedeemPasswordResetCode(ctx, code, "new-password", "new-password")
	require.NoError(t, err)
	require.Equal(t, user.ID, updated.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.True(t, hash.CheckPassword(updated.PasswordHash, "new-password"))

	// consumed: a second redeem of the same code must fail
	_, _, err = svc.RedeemPasswordResetCode(ctx, code, "another", "another")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPasswordResetCodeUnknownUser(t *testing.T) {
	db := testDB(t)
	svc := newCodeService(db, &fakeSender{})

	err := svc.IssuePasswordResetCode(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPasswordResetCodeExpired(t *testing.T) {
	db := testDB(t)
	sender := &fakeSender{}
	svc := newCodeService(db, sender)
	ctx := context.Background()

	user := createUser(t, db, "expired@example.com", "+4400000002", "old-password")
	require.NoError(t, svc.IssuePasswordResetCode(ctx, user.Email))
	code := sender.sent[0].Text

	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.Model(&models.RedemptionCode{}).
		Where("code = ?", code).
		Update("expires_at", past).Error)

	// expired and never-issued codes fail identically
	_, _, err := svc.RedeemPasswordResetCode(ctx, code, "new-password", "new-password")
	require.ErrorIs(t, err, ErrNotFound)

	_, _, err = svc.RedeemPasswordResetCode(ctx, "00000000000000000000000000000000", "new-password", "new-password")
	require.ErrorIs(t, err, ErrNotFound)

	// the old secret still works: nothing was mutated
	var reloaded models.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	require.True(t, hash.CheckPassword(reloaded.PasswordHash, "old-password"))
}

func TestPasswordResetOutstandingCodeConflict(t *testing.T) {
	db := testDB(t)
	sender := &fakeSender{}
	svc := newCodeService(db, sender)
	ctx := context.Background()

	user := createUser(t, db, "pending@example.com", "+4400000003", "password")
	require.NoError(t, svc.IssuePasswordResetCode(ctx, user.Email))

	err := svc.IssuePasswordResetCode(ctx, user.Email)
	require.ErrorIs(t, err, ErrConflict)
	require.Len(t, sender.sent, 1)

	// once the outstanding code ages out a new one can be issued
	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.Model(&models.RedemptionCode{}).
		Where("user_id = ?", user.ID).
		Update("expires_at", past).Error)

	require.NoError(t, svc.IssuePasswordResetCode(ctx, user.Email))
	require.Len(t, sender.sent, 2)
}

func TestPasswordResetConfirmMismatch(t *testing.T) {
	db := testDB(t)
	svc := newCodeService(db, &fakeSender{})

	_, _, err := svc.RedeemPasswordResetCode(context.Background(), "whatever", "one", "two")
	require.ErrorIs(t, err, ErrValidation)
}

func TestPasswordResetDeliveryFailureKeepsCode(t *testing.T) {
	db := testDB(t)
	sender := &fakeSender{fail: true}
	svc := newCodeService(db, sender)
	ctx := context.Background()

	user := createUser(t, db, "bounce@example.com", "+4400000004", "old-password")

	err := svc.IssuePasswordResetCode(ctx, user.Email)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)

	// the code survived the failed send and is still redeemable
	var code models.RedemptionCode
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&code).Error)

	_, _, redeemErr := svc.RedeemPasswordResetCode(ctx, code.Code, "new-password", "new-password")
	require.NoError(t, redeemErr)
}

func TestActivationFlow(t *testing.T) {
	db := testDB(t)
	svc := newCodeService(db, &fakeSender{})
	ctx := context.Background()

	user := createUser(t, db, "student@example.com", "+4400000005", "password")
	course := createCourse(t, db, "Go from scratch")

	code, err := svc.IssueActivationCode(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, code.Code, 32)
	require.Nil(t, code.ExpiresAt)

	activated, err := svc.RedeemActivationCode(ctx, user.ID, code.Code)
	require.NoError(t, err)
	require.Equal(t, course.ID, activated.ID)

	owned, err := svc.Ledger.IsOwned(ctx, user.ID, course.ID)
	require.NoError(t, err)
	require.True(t, owned)

	var reloaded models.Course
	require.NoError(t, db.First(&reloaded, course.ID).Error)
	require.Equal(t, 1, reloaded.NumberOfStudents)

	// consumed codes are gone
	_, err = svc.RedeemActivationCode(ctx, user.ID, code.Code)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestActivationAlreadyOwnedKeepsCode(t *testing.T) {
	db := testDB(t)
	svc := newCodeService(db, &fakeSender{})
	ctx := context.Background()

	owner := createUser(t, db, "owner@example.com", "+4400000006", "password")
	other := createUser(t, db, "other@example.com", "+4400000007", "password")
	course := createCourse(t, db, "Advanced Go")

	first, err := svc.IssueActivationCode(ctx, course.ID)
	require.NoError(t, err)
	_, err = svc.RedeemActivationCode(ctx, owner.ID, first.Code)
	require.NoError(t, err)

	second, err := svc.IssueActivationCode(ctx, course.ID)
	require.NoError(t, err)

	// an owner redeeming again conflicts and the code rolls back intact
	_, err = svc.RedeemActivationCode(ctx, owner.ID, second.Code)
	require.ErrorIs(t, err, ErrConflict)

	var count int64
	require.NoError(t, db.Model(&models.RedemptionCode{}).Where("code = ?", second.Code).Count(&count).Error)
	require.EqualValues(t, 1, count)

	// someone else can still use it
	_, err = svc.RedeemActivationCode(ctx, other.ID, second.Code)
	require.NoError(t, err)
}

func TestActivationCodeUnknown(t *testing.T) {
	db := testDB(t)
	svc := newCodeService(db, &fakeSender{})
	ctx := context.Background()

	user := createUser(t, db, "curious@example.com", "+4400000008", "password")

	_, err := svc.RedeemActivationCode(ctx, user.ID, "not-a-code")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.RedeemActivationCode(ctx, 9999, "not-a-code")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestIssueActivationCodeUnknownCourse(t *testing.T) {
	db := testDB(t)
	svc := newCodeService(db, &fakeSender{})

	_, err := svc.IssueActivationCode(context.Background(), 4242)
	require.ErrorIs(t, err, ErrNotFound)
}
