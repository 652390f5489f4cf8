package invalidate_test

import (
	"context"
	"reflect"
	"testing"

	"reelsmith/internal/invalidate"
	"reelsmith/internal/media"
	"reelsmith/internal/testsupport"
)

func TestRecomputeDependencyTable(t *testing.T) {
	cases := []struct {
		name    string
		changed []invalidate.Field
		want    []media.Artifact
	}{
		{
			name:    "text dirties everything",
			changed: []invalidate.Field{invalidate.FieldText},
			want:    []media.Artifact{media.ArtifactAudio, media.ArtifactImage, media.ArtifactVideo},
		},
		{
			name:    "image prompt dirties image and video",
			changed: []invalidate.Field{invalidate.FieldImagePrompt},
			want:    []media.Artifact{media.ArtifactImage, media.ArtifactVideo},
		},
		{
			name:    "video prompt dirties video only",
			changed: []invalidate.Field{invalidate.FieldVideoPrompt},
			want:    []media.Artifact{media.ArtifactVideo},
		},
		{
			name:    "camera movement dirties video only",
			changed: []invalidate.Field{invalidate.FieldCameraMovement},
			want:    []media.Artifact{media.ArtifactVideo},
		},
		{
			name:    "motion strength dirties video only",
			changed: []invalidate.Field{invalidate.FieldMotionStrength},
			want:    []media.Artifact{media.ArtifactVideo},
		},
		{
			name:    "combined changes union",
			changed: []invalidate.Field{invalidate.FieldImagePrompt, invalidate.FieldCameraMovement},
			want:    []media.Artifact{media.ArtifactImage, media.ArtifactVideo},
		},
		{
			name:    "no tracked changes",
			changed: nil,
			want:    nil,
		},
		{
			name:    "untracked field ignored",
			changed: []invalidate.Field{invalidate.Field("status")},
			want:    nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := invalidate.Recompute(tc.changed).Artifacts()
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Recompute(%v) = %v, want %v", tc.changed, got, tc.want)
			}
		})
	}
}

func TestChangedFieldsDiff(t *testing.T) {
	before := &media.Sentence{Text: "old", ImagePrompt: "sunset", MotionStrength: 0.5}
	after := &media.Sentence{Text: "new", ImagePrompt: "sunset", MotionStrength: 0.8}

	got := invalidate.ChangedFields(before, after)
	want := []invalidate.Field{invalidate.FieldText, invalidate.FieldMotionStrength}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ChangedFields = %v, want %v", got, want)
	}
}

func TestApplySetsFlagsWithoutClearing(t *testing.T) {
	library := testsupport.NewMemoryLibrary()
	library.Put(media.Sentence{ID: "s1", ProjectID: "p", IsImageDirty: true})
	ctx := context.Background()

	if err := invalidate.Apply(ctx, library, "s1", []invalidate.Field{invalidate.FieldCameraMovement}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	sentence, err := library.Sentence(ctx, "s1")
	if err != nil {
		t.Fatalf("Sentence: %v", err)
	}
	if !sentence.IsVideoDirty {
		t.Fatal("camera movement change must dirty video")
	}
	if sentence.IsAudioDirty {
		t.Fatal("camera movement change must not dirty audio")
	}
	if !sentence.IsImageDirty {
		t.Fatal("unrelated change must not clear the image flag")
	}
}

func TestTargetsSkipsCleanUnlessForced(t *testing.T) {
	library := testsupport.NewMemoryLibrary()
	library.Put(media.Sentence{ID: "s1", ProjectID: "p", Order: 1, IsImageDirty: true})
	library.Put(media.Sentence{ID: "s2", ProjectID: "p", Order: 2, IsImageDirty: false})
	library.Put(media.Sentence{ID: "s3", ProjectID: "other", Order: 3, IsImageDirty: true})
	ctx := context.Background()

	dirty, err := invalidate.Targets(ctx, library, "p", media.ArtifactImage, false)
	if err != nil {
		t.Fatalf("Targets: %v", err)
	}
	if len(dirty) != 1 || dirty[0].ID != "s1" {
		t.Fatalf("dirty targets = %+v, want just s1", dirty)
	}

	forced, err := invalidate.Targets(ctx, library, "p", media.ArtifactImage, true)
	if err != nil {
		t.Fatalf("Targets: %v", err)
	}
	if len(forced) != 2 {
		t.Fatalf("forced targets = %+v, want both project sentences", forced)
	}
}
