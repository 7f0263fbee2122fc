package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const samplePassword = "testpassword123"

var sampleCSV = []byte("State,Product Category,Retailer,Sales Method,Invoice Date,Total Sales,Operating Profit\n" +
	"New York,Apparel,Foot Locker,Online,2021-01-15,100.00,20.00\n")

func newTestStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	return store, dir
}

func TestNewRequiresDirectory(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Expected error for missing data directory")
	}
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	store, dir := newTestStorage(t)

	salesFile := filepath.Join(dir, "sales.csv")
	if err := store.WriteFile(salesFile, sampleCSV, 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if err := store.EnableEncryption(samplePassword); err != nil {
		t.Fatalf("Failed to enable encryption: %v", err)
	}
	if !store.IsEncrypted() {
		t.Error("Expected IsEncrypted() to return true")
	}

	raw, _ := os.ReadFile(salesFile)
	if !isAgeEncrypted(raw) {
		t.Error("File should be encrypted on disk")
	}

	read, err := store.ReadFile("sales.csv")
	if err != nil {
		t.Fatalf("Failed to read encrypted file: %v", err)
	}
	if string(read) != string(sampleCSV) {
		t.Errorf("Content mismatch after encryption: got %q", read)
	}

	store.Lock()
	if _, err := store.ReadFile(salesFile); !errors.Is(err, ErrLocked) {
		t.Errorf("Expected ErrLocked while locked, got %v", err)
	}
	if err := store.Unlock(samplePassword); err != nil {
		t.Fatalf("Failed to unlock: %v", err)
	}

	if err := store.DisableEncryption(samplePassword); err != nil {
		t.Fatalf("Failed to disable encryption: %v", err)
	}
	if store.IsEncrypted() {
		t.Error("Expected IsEncrypted() to return false after disable")
	}
	raw, _ = os.ReadFile(salesFile)
	if string(raw) != string(sampleCSV) {
		t.Errorf("Raw content mismatch after decryption")
	}
}

func TestWrongPassword(t *testing.T) {
	store, dir := newTestStorage(t)
	if err := os.WriteFile(filepath.Join(dir, "sales.csv"), sampleCSV, 0644); err != nil {
		t.Fatal(err)
	}
	if err := store.EnableEncryption("correctpassword"); err != nil {
		t.Fatalf("Failed to enable encryption: %v", err)
	}
	store.Lock()

	if err := store.Unlock("wrongpassword"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Expected ErrWrongPassword, got %v", err)
	}
	if err := store.DisableEncryption("wrongpassword"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Expected ErrWrongPassword from DisableEncryption, got %v", err)
	}
}

func TestPasswordTooShort(t *testing.T) {
	store, _ := newTestStorage(t)
	if err := store.EnableEncryption("short"); err == nil {
		t.Error("Expected error for short password")
	}
}

func TestNewFilesEncrypted(t *testing.T) {
	store, dir := newTestStorage(t)
	if err := store.EnableEncryption(samplePassword); err != nil {
		t.Fatalf("Failed to enable encryption: %v", err)
	}

	newFile := filepath.Join(dir, "new.csv")
	if err := store.WriteFile(newFile, sampleCSV, 0644); err != nil {
		t.Fatalf("Failed to write new file: %v", err)
	}

	raw, _ := os.ReadFile(newFile)
	if !isAgeEncrypted(raw) {
		t.Error("New file should be encrypted on disk")
	}

	// A fresh Storage over the same directory detects encryption and needs Unlock
	reopened, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.IsUnlocked() {
		t.Error("Reopened encrypted storage should start locked")
	}
	if err := reopened.Unlock(samplePassword); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	read, err := reopened.ReadFile(newFile)
	if err != nil {
		t.Fatalf("Failed to read new file: %v", err)
	}
	if string(read) != string(sampleCSV) {
		t.Errorf("Content mismatch: got %q", read)
	}
}

func TestSkipsNonDataFiles(t *testing.T) {
	store, dir := newTestStorage(t)
	notes := filepath.Join(dir, "README.txt")
	if err := os.WriteFile(notes, []byte("notes"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := store.EnableEncryption(samplePassword); err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(notes)
	if string(raw) != "notes" {
		t.Error("Non-data file should not be encrypted")
	}
}

func TestDataFiles(t *testing.T) {
	store, dir := newTestStorage(t)
	if err := os.MkdirAll(filepath.Join(dir, "archive"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"sales.csv", "archive/2020.xlsx", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), sampleCSV, 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := store.DataFiles()
	if err != nil {
		t.Fatalf("DataFiles failed: %v", err)
	}
	if len(files) != 2 || files[0] != "archive/2020.xlsx" || files[1] != "sales.csv" {
		t.Errorf("DataFiles = %v", files)
	}
}
