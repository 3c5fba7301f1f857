package starboard

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Seklfreak/robyul-starboard/models"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestAddIsIdempotent(t *testing.T) {
	te := newTestEngine(1)
	msg := testMessage()

	notice, err := te.add(msg, "u1", star)
	if err != nil || notice != NoticeNone {
		t.Fatalf("first Add() = %q, %v", notice, err)
	}
	notice, err = te.add(msg, "u1", star)
	if err != nil {
		t.Fatalf("second Add() failed: %v", err)
	}
	if notice != NoticeAlreadyStarred {
		t.Errorf("second Add() notice = %q, want %q", notice, NoticeAlreadyStarred)
	}

	entry, _ := te.stars.get(msg.ID)
	want := models.StarEntry{
		GuildID:                   "guild",
		MessageID:                 msg.ID,
		ChannelID:                 "general",
		AuthorID:                  "author",
		StarboardMessageID:        "mirror-1",
		StarboardMessageChannelID: "starboard",
		StarUserIDs:               []string{"u1"},
		Stars:                     1,
		FirstStarred:              te.clock.Now(),
	}
	if diff := cmp.Diff(want, entry, cmpopts.IgnoreFields(models.StarEntry{}, "ID")); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
	if te.chat.sends != 1 || te.chat.edits != 0 {
		t.Errorf("sends = %d, edits = %d, want one post and no edit", te.chat.sends, te.chat.edits)
	}
}

func TestAddRemoveSymmetry(t *testing.T) {
	te := newTestEngine(1)
	msg := testMessage()

	if _, err := te.add(msg, "u1", star); err != nil {
		t.Fatal(err)
	}
	if err := te.remove(msg, "u1", star); err != nil {
		t.Fatal(err)
	}

	if _, ok := te.stars.get(msg.ID); ok {
		t.Error("entry still exists after its only star was removed")
	}
	if te.chat.count() != 0 {
		t.Errorf("%d starboard messages left, want none", te.chat.count())
	}

	// removing again is a no-op
	if err := te.remove(msg, "u1", star); err != nil {
		t.Errorf("Remove() without entry = %v", err)
	}
}

func TestThresholdBoundary(t *testing.T) {
	te := newTestEngine(3)
	msg := testMessage()

	for _, userID := range []string{"u1", "u2"} {
		if _, err := te.add(msg, userID, star); err != nil {
			t.Fatal(err)
		}
	}
	if te.chat.count() != 0 {
		t.Fatalf("posted below threshold")
	}

	if _, err := te.add(msg, "u3", star); err != nil {
		t.Fatal(err)
	}
	entry, _ := te.stars.get(msg.ID)
	if !entry.HasMirror() || te.chat.count() != 1 {
		t.Fatalf("not posted at threshold: %+v", entry)
	}

	if err := te.remove(msg, "u2", star); err != nil {
		t.Fatal(err)
	}
	entry, _ = te.stars.get(msg.ID)
	if entry.HasMirror() || te.chat.count() != 0 {
		t.Errorf("starboard message kept below threshold: %+v", entry)
	}
	if diff := cmp.Diff([]string{"u1", "u3"}, entry.StarUserIDs); diff != "" {
		t.Errorf("starrers mismatch (-want +got):\n%s", diff)
	}
	if entry.Stars != 2 {
		t.Errorf("Stars = %d, want 2", entry.Stars)
	}

	if _, err := te.add(msg, "u4", star); err != nil {
		t.Fatal(err)
	}
	entry, _ = te.stars.get(msg.ID)
	if !entry.HasMirror() || te.chat.sends != 2 {
		t.Errorf("not posted again after reaching threshold, sends = %d", te.chat.sends)
	}
}

func TestConcurrentAdds(t *testing.T) {
	te := newTestEngine(1)
	msg := testMessage()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := te.add(msg, fmt.Sprintf("user-%d", i), star); err != nil {
				t.Errorf("Add() failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	entry, _ := te.stars.get(msg.ID)
	if entry.Stars != 50 || len(entry.StarUserIDs) != 50 {
		t.Errorf("Stars = %d with %d starrers, want 50", entry.Stars, len(entry.StarUserIDs))
	}
	if te.chat.sends != 1 || te.chat.edits != 49 {
		t.Errorf("sends = %d, edits = %d, want 1 and 49", te.chat.sends, te.chat.edits)
	}
}

func TestSelfStar(t *testing.T) {
	tests := []struct {
		name        string
		enabled     bool
		warning     bool
		wantNotices []Notice
		wantStars   int
	}{
		{name: "warn", enabled: false, warning: true, wantNotices: []Notice{NoticeSelfStar, NoticeNone, NoticeSelfStar}},
		{name: "silent", enabled: false, warning: false, wantNotices: []Notice{NoticeNone, NoticeNone, NoticeNone}},
		{name: "allowed", enabled: true, warning: true, wantNotices: []Notice{NoticeNone, NoticeAlreadyStarred, NoticeAlreadyStarred}, wantStars: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(1)
			te.settings.set(func(config *models.StarboardConfig) {
				config.SelfStarEnabled = tt.enabled
				config.SelfStarWarning = tt.warning
			})
			msg := testMessage()

			var notices []Notice
			for _, advance := range []time.Duration{0, 30 * time.Second, 31 * time.Second} {
				te.clock.Advance(advance)
				notice, err := te.add(msg, "author", star)
				if err != nil {
					t.Fatal(err)
				}
				notices = append(notices, notice)
			}

			if diff := cmp.Diff(tt.wantNotices, notices); diff != "" {
				t.Errorf("notices mismatch (-want +got):\n%s", diff)
			}
			entry, _ := te.stars.get(msg.ID)
			if entry.Stars != tt.wantStars {
				t.Errorf("Stars = %d, want %d", entry.Stars, tt.wantStars)
			}
		})
	}
}

func TestSelfStarRemoveIgnored(t *testing.T) {
	te := newTestEngine(1)
	msg := testMessage()

	if _, err := te.add(msg, "u1", star); err != nil {
		t.Fatal(err)
	}
	if err := te.remove(msg, "author", star); err != nil {
		t.Fatal(err)
	}
	entry, _ := te.stars.get(msg.ID)
	if entry.Stars != 1 {
		t.Errorf("Stars = %d, want 1", entry.Stars)
	}
}

func TestEmojiMismatch(t *testing.T) {
	te := newTestEngine(1)
	msg := testMessage()

	notice, err := te.add(msg, "u1", models.Emoji{Name: "🌟"})
	if err != nil || notice != NoticeNone {
		t.Fatalf("Add() = %q, %v", notice, err)
	}
	if _, ok := te.stars.get(msg.ID); ok {
		t.Error("entry created for a different emoji")
	}
	if te.chat.sends != 0 {
		t.Error("posted for a different emoji")
	}
}

func TestCustomTriggerEmoji(t *testing.T) {
	te := newTestEngine(1)
	te.settings.set(func(config *models.StarboardConfig) {
		config.TriggerEmoji = models.ParseEmoji("<a:blobstar:317034621953114112>")
	})
	msg := testMessage()

	if _, err := te.add(msg, "u1", models.Emoji{ID: "317034621953114112", Name: "blobstar", Animated: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := te.add(msg, "u2", star); err != nil {
		t.Fatal(err)
	}

	entry, _ := te.stars.get(msg.ID)
	if entry.Stars != 1 {
		t.Errorf("Stars = %d, want 1", entry.Stars)
	}
}

func TestDisabledStarboard(t *testing.T) {
	for name, change := range map[string]func(config *models.StarboardConfig){
		"disabled":       func(config *models.StarboardConfig) { config.Enabled = false },
		"no destination": func(config *models.StarboardConfig) { config.DestinationChannelID = "" },
	} {
		t.Run(name, func(t *testing.T) {
			te := newTestEngine(1)
			te.settings.set(change)
			msg := testMessage()

			if _, err := te.add(msg, "u1", star); err != nil {
				t.Fatal(err)
			}
			if _, ok := te.stars.get(msg.ID); ok {
				t.Error("entry created while the starboard is off")
			}
		})
	}
}

func TestDestinationMoved(t *testing.T) {
	te := newTestEngine(1)
	msg := testMessage()

	if _, err := te.add(msg, "u1", star); err != nil {
		t.Fatal(err)
	}
	te.settings.set(func(config *models.StarboardConfig) {
		config.DestinationChannelID = "new-starboard"
	})
	if _, err := te.add(msg, "u2", star); err != nil {
		t.Fatal(err)
	}

	entry, _ := te.stars.get(msg.ID)
	if entry.StarboardMessageChannelID != "new-starboard" || entry.StarboardMessageID != "mirror-2" {
		t.Errorf("starboard message not moved: %+v", entry)
	}
	if te.chat.count() != 1 || te.chat.deletes != 1 {
		t.Errorf("count = %d, deletes = %d, want the old message deleted", te.chat.count(), te.chat.deletes)
	}
}

func TestMirrorDeletedByModerator(t *testing.T) {
	te := newTestEngine(1)
	msg := testMessage()

	if _, err := te.add(msg, "u1", star); err != nil {
		t.Fatal(err)
	}
	if err := te.chat.DeleteMessage("starboard", "mirror-1"); err != nil {
		t.Fatal(err)
	}

	if _, err := te.add(msg, "u2", star); err != nil {
		t.Fatalf("Add() after the starboard message vanished: %v", err)
	}
	entry, _ := te.stars.get(msg.ID)
	if entry.StarboardMessageID != "mirror-2" {
		t.Errorf("StarboardMessageID = %q, want a new post", entry.StarboardMessageID)
	}

	// a vanished message below threshold counts as deleted
	te.settings.set(func(config *models.StarboardConfig) { config.Threshold = 5 })
	te.chat.DeleteMessage("starboard", "mirror-2")
	if err := te.remove(msg, "u2", star); err != nil {
		t.Errorf("Remove() with vanished starboard message: %v", err)
	}
}

func TestRetire(t *testing.T) {
	te := newTestEngine(1)
	msg := testMessage()

	if _, err := te.add(msg, "u1", star); err != nil {
		t.Fatal(err)
	}
	if err := te.Retire(msg.ID); err != nil {
		t.Fatal(err)
	}

	if _, ok := te.stars.get(msg.ID); ok {
		t.Error("entry kept after the source message was deleted")
	}
	if te.chat.count() != 0 {
		t.Error("starboard message kept after the source message was deleted")
	}
	if err := te.Retire("unknown"); err != nil {
		t.Errorf("Retire() without entry = %v", err)
	}
}

func TestMirrorFooterFollowsCount(t *testing.T) {
	te := newTestEngine(1)
	msg := testMessage()

	for i := 0; i < 5; i++ {
		if _, err := te.add(msg, fmt.Sprintf("user-%d", i), star); err != nil {
			t.Fatal(err)
		}
	}

	embed := te.chat.embed("mirror-1")
	want := "🌟 5 | " + msg.ID
	if embed == nil || embed.Footer == nil || embed.Footer.Text != want {
		t.Errorf("footer = %+v, want %q", embed, want)
	}
}

func TestFailedCreateTakesBackPost(t *testing.T) {
	te := newTestEngine(1)
	msg := testMessage()
	te.stars.failCreate = 1

	if _, err := te.add(msg, "u1", star); err == nil {
		t.Fatal("Add() succeeded although the entry was not saved")
	}
	if te.chat.count() != 0 {
		t.Errorf("%d starboard messages left for an unsaved entry, want none", te.chat.count())
	}

	if _, err := te.add(msg, "u2", star); err != nil {
		t.Fatal(err)
	}
	entry, _ := te.stars.get(msg.ID)
	if diff := cmp.Diff([]string{"u2"}, entry.StarUserIDs); diff != "" {
		t.Errorf("starrers mismatch (-want +got):\n%s", diff)
	}
	if te.chat.count() != 1 || entry.StarboardMessageID != "mirror-2" {
		t.Errorf("count = %d, entry = %+v, want exactly the saved starboard message", te.chat.count(), entry)
	}
}

func TestFailedPostStoresNothing(t *testing.T) {
	te := newTestEngine(1)
	msg := testMessage()
	te.chat.failSends = 1

	if _, err := te.add(msg, "u1", star); err == nil {
		t.Fatal("Add() succeeded although posting failed")
	}
	if _, ok := te.stars.get(msg.ID); ok {
		t.Error("entry saved without its starboard message")
	}

	if _, err := te.add(msg, "u1", star); err != nil {
		t.Fatalf("Add() after a failed post: %v", err)
	}
	entry, _ := te.stars.get(msg.ID)
	if entry.Stars != 1 || !entry.HasMirror() {
		t.Errorf("entry = %+v, want one star and a starboard message", entry)
	}
}

func TestFailedPersistOnRemove(t *testing.T) {
	te := newTestEngine(1)
	msg := testMessage()

	for _, userID := range []string{"u1", "u2"} {
		if _, err := te.add(msg, userID, star); err != nil {
			t.Fatal(err)
		}
	}

	te.stars.failPersist = 1
	if err := te.remove(msg, "u2", star); err == nil {
		t.Fatal("Remove() succeeded although the entry was not saved")
	}
	entry, _ := te.stars.get(msg.ID)
	if entry.Stars != 2 || entry.StarboardMessageID != "mirror-1" || te.chat.count() != 1 {
		t.Fatalf("entry = %+v with %d starboard messages, want it untouched", entry, te.chat.count())
	}

	if err := te.remove(msg, "u2", star); err != nil {
		t.Fatal(err)
	}
	entry, _ = te.stars.get(msg.ID)
	if diff := cmp.Diff([]string{"u1"}, entry.StarUserIDs); diff != "" {
		t.Errorf("starrers mismatch (-want +got):\n%s", diff)
	}
}

func TestFailedLoadDoesNotStallMessage(t *testing.T) {
	te := newTestEngine(1)
	msg := testMessage()
	te.stars.failFind = 1

	results := []<-chan Result{
		te.QueueAdd(te.reaction(msg, "u1", star)),
		te.QueueAdd(te.reaction(msg, "u2", star)),
	}
	if result := <-results[0]; result.Err == nil {
		t.Error("first Add() succeeded although loading failed")
	}
	if result := <-results[1]; result.Err != nil {
		t.Fatalf("second Add() = %v", result.Err)
	}

	entry, _ := te.stars.get(msg.ID)
	if diff := cmp.Diff([]string{"u2"}, entry.StarUserIDs); diff != "" {
		t.Errorf("starrers mismatch (-want +got):\n%s", diff)
	}
}

func TestRetireAfterFailedRemove(t *testing.T) {
	te := newTestEngine(1)
	msg := testMessage()

	if _, err := te.add(msg, "u1", star); err != nil {
		t.Fatal(err)
	}

	te.stars.failRemove = 1
	if err := te.Retire(msg.ID); err == nil {
		t.Fatal("Retire() succeeded although the entry was kept")
	}
	if err := te.Retire(msg.ID); err != nil {
		t.Fatalf("second Retire() = %v", err)
	}
	if _, ok := te.stars.get(msg.ID); ok {
		t.Error("entry kept after retiring twice")
	}
	if te.chat.count() != 0 {
		t.Error("starboard message kept after retiring")
	}
}

func TestSourceMessageNotModified(t *testing.T) {
	te := newTestEngine(1)
	msg := testMessage()
	msg.GuildID = ""

	if _, err := te.add(msg, "u1", star); err != nil {
		t.Fatal(err)
	}
	if msg.GuildID != "" {
		t.Errorf("source message GuildID = %q, want it untouched", msg.GuildID)
	}
	if entry, _ := te.stars.get(msg.ID); entry.GuildID != "guild" {
		t.Errorf("entry GuildID = %q, want guild", entry.GuildID)
	}
}

func TestMissingSourceIsIgnored(t *testing.T) {
	te := newTestEngine(1)

	notice, err := te.Add(Reaction{GuildID: "guild", ChannelID: "general", MessageID: "gone", UserID: "u1", Emoji: star})
	if err != nil || notice != NoticeNone {
		t.Fatalf("Add() = %q, %v", notice, err)
	}
	if _, ok := te.stars.get("gone"); ok {
		t.Error("entry created for a deleted message")
	}
}
