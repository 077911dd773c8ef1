package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/drivesink/drivesink/internal/drive"
	"github.com/drivesink/drivesink/internal/model"
	"github.com/drivesink/drivesink/internal/repository"
)

type fakeFileRepo struct {
	mu        sync.Mutex
	processed map[string]string // file_id -> file_name
	existsErr error
	markErr   error
	filterErr error
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{processed: make(map[string]string)}
}

func (f *fakeFileRepo) MarkProcessed(fileID, fileName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return false, f.markErr
	}
	if _, ok := f.processed[fileID]; ok {
		return false, nil
	}
	f.processed[fileID] = fileName
	return true, nil
}

func (f *fakeFileRepo) Exists(fileID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.processed[fileID]
	return ok, nil
}

func (f *fakeFileRepo) FilterNew(fileIDs []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.filterErr != nil {
		return nil, f.filterErr
	}
	var fresh []string
	for _, id := range fileIDs {
		if _, ok := f.processed[id]; !ok {
			fresh = append(fresh, id)
		}
	}
	return fresh, nil
}

func (f *fakeFileRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.processed)
}

type fakeChannelRepo struct {
	mu        sync.Mutex
	channels  map[string]*model.NotificationChannel // by channel_id
	lookupErr error
}

func newFakeChannelRepo() *fakeChannelRepo {
	return &fakeChannelRepo{channels: make(map[string]*model.NotificationChannel)}
}

func (f *fakeChannelRepo) Create(channel *model.NotificationChannel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[channel.ChannelID] = channel
	return nil
}

func (f *fakeChannelRepo) ByChannelID(channelID string) (*model.NotificationChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, repository.ErrChannelNotFound
	}
	return ch, nil
}

func (f *fakeChannelRepo) FolderByChannelID(channelID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	ch, ok := f.channels[channelID]
	if !ok {
		return "", repository.ErrChannelNotFound
	}
	return ch.FolderID, nil
}

func (f *fakeChannelRepo) ExpiringBefore(threshold time.Time) ([]*model.NotificationChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.NotificationChannel
	for _, ch := range f.channels {
		if !ch.Expiration.After(threshold) {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *fakeChannelRepo) Replace(oldChannelID, newChannelID string, expiration time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[oldChannelID]
	if !ok {
		return repository.ErrChannelNotFound
	}
	delete(f.channels, oldChannelID)
	ch.ChannelID = newChannelID
	ch.Expiration = expiration
	f.channels[newChannelID] = ch
	return nil
}

type fakeProvider struct {
	mu          sync.Mutex
	files       []drive.File
	listErr     error
	listCalls   int
	downloadErr error
	downloads   []string
	content     string
	registerErr map[string]error // by folder_id
	registerSeq int
	stopCalls   int
	stopErr     error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{content: "file content"}
}

func (p *fakeProvider) RegisterWatch(_ context.Context, folderID string) (*drive.Watch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.registerErr[folderID]; err != nil {
		return nil, err
	}
	p.registerSeq++
	return &drive.Watch{
		ChannelID:  fmt.Sprintf("renewed-%d", p.registerSeq),
		FolderID:   folderID,
		ResourceID: "resource-" + folderID,
		Expiration: time.Now().Add(7 * 24 * time.Hour),
	}, nil
}

func (p *fakeProvider) ListCreatedSince(_ context.Context, _ string, _ time.Time) ([]drive.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.files, nil
}

func (p *fakeProvider) Download(_ context.Context, fileID, destPath string) error {
	p.mu.Lock()
	p.downloads = append(p.downloads, fileID)
	err := p.downloadErr
	content := p.content
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(destPath, []byte(content), 0644)
}

func (p *fakeProvider) StopWatch(_ context.Context, _, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopCalls++
	return p.stopErr
}

func (p *fakeProvider) listCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listCalls
}

type fakeUploader struct {
	mu    sync.Mutex
	calls int
	err   error
	delay time.Duration
}

func (u *fakeUploader) Upload(_ context.Context, _ string) (string, error) {
	u.mu.Lock()
	u.calls++
	n := u.calls
	err := u.err
	delay := u.delay
	u.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("doc-%d", n), nil
}

func (u *fakeUploader) uploads() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}
