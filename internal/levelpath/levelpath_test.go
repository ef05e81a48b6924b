package levelpath

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"/Game/Rooms/RoomA", "/Game/Rooms/RoomA"},
		{"/Game/Rooms/RoomA.RoomA", "/Game/Rooms/RoomA"},
		{"/Game/Rooms/RoomA_LevelInstance_1", "/Game/Rooms/RoomA"},
		{"/Game/Rooms/RoomA_LevelInstance_12.RoomA", "/Game/Rooms/RoomA"},
		{"/Game/Rooms/UEDPIE_0_RoomA", "/Game/Rooms/RoomA"},
		{"/Game/Rooms/UEDPIE_17_RoomA_LevelInstance_4", "/Game/Rooms/RoomA"},
		{"/Game/Rooms/UEDPIE_2_RoomA.UEDPIE_2_RoomA", "/Game/Rooms/RoomA"},
		{"  /Game/Rooms/RoomA  ", "/Game/Rooms/RoomA"},
		{"/Game/v1.2/RoomA", "/Game/v1.2/RoomA"},
		{"/Game/Rooms/UEDPIE_Room", "/Game/Rooms/UEDPIE_Room"},
		{"/Game/Rooms/UEDPIE_3", "/Game/Rooms/UEDPIE_3"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := Normalize(tt.raw); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSessionVariantsAreSame(t *testing.T) {
	variants := []string{
		"/Game/Rooms/Hall.Hall",
		"/Game/Rooms/Hall_LevelInstance_1",
		"/Game/Rooms/Hall_LevelInstance_99",
		"/Game/Rooms/UEDPIE_0_Hall",
		"/Game/Rooms/UEDPIE_1_Hall_LevelInstance_5",
	}
	for _, v := range variants {
		if !Same(v, variants[0]) {
			t.Errorf("Same(%q, %q) = false, want true", v, variants[0])
		}
	}

	if Same("/Game/Rooms/Hall", "/Game/Rooms/Hallway") {
		t.Error("different rooms should not compare equal")
	}
}

func TestShortName(t *testing.T) {
	if got := ShortName("/Game/Rooms/UEDPIE_0_Hall_LevelInstance_2"); got != "Hall" {
		t.Errorf("ShortName = %q, want Hall", got)
	}
	if got := ShortName("Hall"); got != "Hall" {
		t.Errorf("ShortName(Hall) = %q, want Hall", got)
	}
}
