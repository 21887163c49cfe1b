package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSource_KnownModels(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"GFS", "http://nomads.ncep.noaa.gov:9090/dods/gfs_0p25/gfs20180120/gfs_0p25_18z"},
		{"GFSH", "http://nomads.ncep.noaa.gov:9090/dods/gfs_0p25_1hr/gfs20180120/gfs_0p25_1hr_18z"},
		{"ARW", "http://nomads.ncep.noaa.gov:9090/dods/hiresw/hiresw20180120/hiresw_conusarw_18z"},
		{"NMM", "http://nomads.ncep.noaa.gov:9090/dods/hiresw/hiresw20180120/hiresw_conusnmmb_18z"},
		{"HRRR", "http://nomads.ncep.noaa.gov:9090/dods/hrrr/hrrr20180120/hrrr_sfc_18z"},
		{"NARRE", "http://nomads.ncep.noaa.gov:9090/dods/narre/narre20180120/narre_130_mean_18z"},
		{"NWW3", "http://nomads.ncep.noaa.gov:9090/dods/wave/nww3/nww320180120/nww320180120_18z"},
		{"NAM3K", "http://nomads.ncep.noaa.gov:9090/dods/nam/nam20180120/nam1hr_18z"},
		{"NAMNEST", "http://nomads.ncep.noaa.gov:9090/dods/nam/nam20180120/nam_conusnest_18z"},
		{"rap", "http://nomads.ncep.noaa.gov:9090/dods/rap/rap20180120/rap_18z"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, err := ResolveSource(tt.model, "20180120", "18")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveSource_Pure(t *testing.T) {
	for _, m := range Models() {
		first, err := ResolveSource(m.ID, "20200101", "00")
		require.NoError(t, err)
		second, err := ResolveSource(m.ID, "20200101", "00")
		require.NoError(t, err)
		assert.Equal(t, first, second, m.ID)
	}
}

func TestResolveSource_UnknownModel(t *testing.T) {
	_, err := ResolveSource("ECMWF", "20200101", "00")

	var ue *UnknownModelError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "ECMWF", ue.Model)
}

func TestResolveSource_InvalidRunInputs(t *testing.T) {
	tests := []struct {
		name, date, cycle string
	}{
		{"short date", "2020011", "00"},
		{"non-digit date", "2020O101", "00"},
		{"impossible date", "20200231", "00"},
		{"short cycle", "20200101", "0"},
		{"hour past 23", "20200101", "24"},
		{"non-digit cycle", "20200101", "1z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveSource("HRRR", tt.date, tt.cycle)
			assert.Error(t, err)
		})
	}
}

func TestSourceResolver_CustomBaseURL(t *testing.T) {
	r := SourceResolver{BaseURL: "https://mirror.example.org/dods"}
	got, err := r.Resolve("hrrr", "20240305", "06")
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example.org/dods/hrrr/hrrr20240305/hrrr_sfc_06z", got)
}

func TestLookupModel_Metadata(t *testing.T) {
	strides := map[string]int{"GFS": 2, "GFSH": 6, "RAP": 3, "HRRR": 1}
	for id, want := range strides {
		m, err := LookupModel(id)
		require.NoError(t, err)
		assert.Equal(t, want, m.AccumStride, id)
	}

	gfs, err := LookupModel("GFS")
	require.NoError(t, err)
	assert.Equal(t, Lon360, gfs.Convention)
}
