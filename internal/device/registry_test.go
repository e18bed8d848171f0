package device_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Felipecabreramarcon/sync-saves-sub000/internal/device"
	"github.com/Felipecabreramarcon/sync-saves-sub000/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

// MockDeviceRepository is a mock for DeviceRepository.
type MockDeviceRepository struct {
	mock.Mock
}

func (m *MockDeviceRepository) UpsertDevice(
	ctx context.Context,
	d *models.Device,
) (*models.Device, error) {
	args := m.Called(ctx, d)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.Device), args.Error(1)
}

func (m *MockDeviceRepository) ListDevices(ctx context.Context, userID string) ([]models.Device, error) {
	args := m.Called(ctx, userID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]models.Device), args.Error(1)
}

func (m *MockDeviceRepository) DeleteDevice(ctx context.Context, deviceID string) error {
	args := m.Called(ctx, deviceID)
	return args.Error(0)
}

// stubConfig реализует ConfigStore с фиксированными значениями.
type stubConfig struct {
	machineID    string
	machineIDErr error
	deviceName   string
}

func (s *stubConfig) GetOrCreateMachineID(_ context.Context) (string, error) {
	return s.machineID, s.machineIDErr
}

func (s *stubConfig) DeviceName(_ context.Context) (string, error) {
	return s.deviceName, nil
}

// --- Tests ---

func TestRegister(t *testing.T) {
	repo := new(MockDeviceRepository)
	registry := device.NewRegistry(repo, &stubConfig{machineID: "machine-abc", deviceName: "Gaming PC"})

	registered := &models.Device{
		ID:         "device-1",
		UserID:     "user-1",
		Name:       "Gaming PC",
		MachineID:  "machine-abc",
		LastSeenAt: time.Now(),
	}
	repo.On("UpsertDevice", mock.Anything, mock.MatchedBy(func(d *models.Device) bool {
		return d.UserID == "user-1" && d.MachineID == "machine-abc" && d.Name == "Gaming PC"
	})).Return(registered, nil)

	result := registry.Register(context.Background(), "user-1")

	require.NotNil(t, result)
	assert.Equal(t, "device-1", result.ID)
	assert.True(t, result.IsCurrent, "зарегистрированное устройство — текущее")
	repo.AssertExpectations(t)
}

func TestRegister_RepositoryError(t *testing.T) {
	repo := new(MockDeviceRepository)
	registry := device.NewRegistry(repo, &stubConfig{machineID: "machine-abc"})

	repo.On("UpsertDevice", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection error"))

	// Ошибка регистрации не пробрасывается: возвращается nil.
	result := registry.Register(context.Background(), "user-1")

	assert.Nil(t, result)
	repo.AssertExpectations(t)
}

func TestRegister_MachineIDError(t *testing.T) {
	repo := new(MockDeviceRepository)
	registry := device.NewRegistry(repo, &stubConfig{machineIDErr: errors.New("disk error")})

	result := registry.Register(context.Background(), "user-1")

	assert.Nil(t, result)
	repo.AssertNotCalled(t, "UpsertDevice")
}

func TestList_MarksCurrentDevice(t *testing.T) {
	repo := new(MockDeviceRepository)
	registry := device.NewRegistry(repo, &stubConfig{machineID: "machine-abc"})

	repo.On("ListDevices", mock.Anything, "user-1").Return([]models.Device{
		{ID: "device-1", MachineID: "machine-abc"},
		{ID: "device-2", MachineID: "machine-def"},
	}, nil)

	devices, err := registry.List(context.Background(), "user-1")

	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.True(t, devices[0].IsCurrent)
	assert.False(t, devices[1].IsCurrent)
	repo.AssertExpectations(t)
}

func TestList_RepositoryError(t *testing.T) {
	repo := new(MockDeviceRepository)
	registry := device.NewRegistry(repo, &stubConfig{machineID: "machine-abc"})

	repo.On("ListDevices", mock.Anything, "user-1").
		Return(nil, errors.New("connection error"))

	devices, err := registry.List(context.Background(), "user-1")

	require.Error(t, err)
	assert.Nil(t, devices)
	repo.AssertExpectations(t)
}

func TestRemove(t *testing.T) {
	repo := new(MockDeviceRepository)
	registry := device.NewRegistry(repo, &stubConfig{machineID: "machine-abc"})

	repo.On("DeleteDevice", mock.Anything, "device-2").Return(nil)

	require.NoError(t, registry.Remove(context.Background(), "device-2"))
	repo.AssertExpectations(t)
}
