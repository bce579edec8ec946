package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-core/internal/apperr"
	"messenger-core/internal/logging"
	"messenger-core/internal/mocks"
	"messenger-core/internal/models"
	"messenger-core/internal/repositories"
)

type auditRecord struct {
	level, action, userID string
	attrs                 map[string]string
}

type recordingAuditor struct {
	mu      sync.Mutex
	records []auditRecord
}

func (a *recordingAuditor) Emit(_ context.Context, level, action, _, _, userID string, attrs map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, auditRecord{level: level, action: action, userID: userID, attrs: attrs})
}

func (a *recordingAuditor) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.records))
	for _, r := range a.records {
		out = append(out, r.action)
	}
	return out
}

func newDeviceFixture() (*DeviceCustodian, *mocks.Store, *recordingAuditor) {
	st := mocks.NewStore()
	audit := &recordingAuditor{}
	svc := NewDeviceCustodian(st, audit, logging.Discard()).WithClock(func() time.Time { return fixedNow })
	return svc, st, audit
}

func TestRegisterFirstDeviceIsPrimary(t *testing.T) {
	svc, st, audit := newDeviceFixture()
	st.Locks.On("LockUser", mock.Anything, "u1").Return(nil).Once()
	st.Devices.On("FingerprintExists", mock.Anything, "fp1").Return(false, nil)
	st.Devices.On("CountForUser", mock.Anything, "u1").Return(0, nil)
	st.Devices.On("Create", mock.Anything, mock.MatchedBy(func(d models.Device) bool {
		return d.IsPrimary && d.UserID == "u1" && d.LastActive.Equal(fixedNow)
	})).Return(models.Device{ID: "d1", UserID: "u1", IsPrimary: true}, nil).Once()

	device, err := svc.Register(context.Background(), "u1", RegisterInput{DeviceName: "phone", DeviceFingerprint: "fp1", EncryptedPrivateKey: "blob"})
	require.NoError(t, err)
	assert.True(t, device.IsPrimary)
	assert.Equal(t, []string{"device_registered"}, audit.actions())
	st.AssertExpectations(t)
}

func TestRegisterSecondDeviceIsNotPrimary(t *testing.T) {
	svc, st, _ := newDeviceFixture()
	st.Locks.On("LockUser", mock.Anything, "u1").Return(nil)
	st.Devices.On("FingerprintExists", mock.Anything, "fp2").Return(false, nil)
	st.Devices.On("CountForUser", mock.Anything, "u1").Return(1, nil)
	st.Devices.On("Create", mock.Anything, mock.MatchedBy(func(d models.Device) bool { return !d.IsPrimary })).
		Return(models.Device{ID: "d2", UserID: "u1"}, nil).Once()

	device, err := svc.Register(context.Background(), "u1", RegisterInput{DeviceName: "laptop", DeviceFingerprint: "fp2", EncryptedPrivateKey: "blob"})
	require.NoError(t, err)
	assert.False(t, device.IsPrimary)
	st.Devices.AssertExpectations(t)
}

func TestRegisterDuplicateFingerprint(t *testing.T) {
	svc, st, _ := newDeviceFixture()
	st.Locks.On("LockUser", mock.Anything, "u1").Return(nil)
	st.Devices.On("FingerprintExists", mock.Anything, "fp1").Return(true, nil)

	_, err := svc.Register(context.Background(), "u1", RegisterInput{DeviceName: "phone", DeviceFingerprint: "fp1", EncryptedPrivateKey: "blob"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	st.Devices.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	_, err = svc.Register(context.Background(), "u1", RegisterInput{DeviceFingerprint: "fp1", EncryptedPrivateKey: "blob"})
	assert.Equal(t, "device_name", apperr.Body(err)["field"])
}

func TestPrivateKeyFreshness(t *testing.T) {
	cases := []struct {
		name    string
		device  models.Device
		allowed bool
	}{
		{"secondary active 23h ago", models.Device{ID: "d", UserID: "u1", LastActive: fixedNow.Add(-23 * time.Hour)}, true},
		{"secondary active exactly 24h ago", models.Device{ID: "d", UserID: "u1", LastActive: fixedNow.Add(-FreshnessWindow)}, true},
		{"secondary active 25h ago", models.Device{ID: "d", UserID: "u1", LastActive: fixedNow.Add(-25 * time.Hour)}, false},
		{"primary idle for a month", models.Device{ID: "d", UserID: "u1", IsPrimary: true, LastActive: fixedNow.Add(-30 * 24 * time.Hour)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, st, _ := newDeviceFixture()
			tc.device.EncryptedPrivateKey = "blob"
			st.Devices.On("Get", mock.Anything, "d").Return(tc.device, nil)

			bundle, err := svc.GetPrivateKeyBundle(context.Background(), "u1", "d")
			if tc.allowed {
				require.NoError(t, err)
				assert.Equal(t, "blob", bundle.EncryptedPrivateKey)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindAuthorization))
		})
	}
}

func TestPrivateKeyOfAnotherUserIsNotFound(t *testing.T) {
	svc, st, _ := newDeviceFixture()
	st.Devices.On("Get", mock.Anything, "d").Return(models.Device{ID: "d", UserID: "u2", IsPrimary: true}, nil)
	st.Devices.On("Get", mock.Anything, "gone").Return(nil, repositories.ErrDeviceNotFound)

	_, err := svc.GetPrivateKeyBundle(context.Background(), "u1", "d")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = svc.GetPrivateKeyBundle(context.Background(), "u1", "gone")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	st.Devices.AssertNotCalled(t, "TouchLastActive", mock.Anything, mock.Anything, mock.Anything)
}

func TestTouchOnLogin(t *testing.T) {
	svc, st, _ := newDeviceFixture()
	st.Devices.On("FindByFingerprint", mock.Anything, "u1", "known").Return(models.Device{ID: "d1", UserID: "u1"}, nil)
	st.Devices.On("FindByFingerprint", mock.Anything, "u1", "unknown").Return(nil, repositories.ErrDeviceNotFound)
	st.Devices.On("TouchLastActive", mock.Anything, "d1", fixedNow).Return(nil).Once()

	ok, err := svc.TouchOnLogin(context.Background(), "u1", "known")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.TouchOnLogin(context.Background(), "u1", "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
	st.Devices.AssertExpectations(t)
}

func TestListPublicHidesKeys(t *testing.T) {
	svc, st, _ := newDeviceFixture()
	st.Devices.On("ListForUser", mock.Anything, "u2").Return([]models.Device{
		{ID: "d1", DeviceName: "phone", EncryptedPrivateKey: "secret", IsPrimary: true},
	}, nil)

	list, err := svc.ListPublic(context.Background(), "u2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.PublicDevice{ID: "d1", DeviceName: "phone", IsPrimary: true}, list[0])
}

func TestDeleteDevice(t *testing.T) {
	svc, st, audit := newDeviceFixture()
	st.Devices.On("Delete", mock.Anything, "u1", "d1").Return(nil).Once()
	st.Devices.On("Delete", mock.Anything, "u1", "d9").Return(repositories.ErrDeviceNotFound).Once()

	require.NoError(t, svc.Delete(context.Background(), "u1", "d1"))
	assert.True(t, apperr.Is(svc.Delete(context.Background(), "u1", "d9"), apperr.KindNotFound))
	assert.Equal(t, []string{"device_deleted"}, audit.actions())
}
