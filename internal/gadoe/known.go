package gadoe

import "gaenroll/pkg/contracts/domain"

// knownTable is the static fallback of previously-verified filenames per
// (year, dataset). Entries are only returned after a live probe, so a
// stale entry degrades to "unresolved" rather than a broken download.
type knownTable map[int]map[domain.Dataset]string

func (t knownTable) lookup(year int, dataset domain.Dataset) (string, bool) {
	files, ok := t[year]
	if !ok {
		return "", false
	}
	filename, ok := files[dataset]
	return filename, ok
}

// knownGoodFiles were each observed live on the portal. The table gets a
// new row whenever a published year's listing was seen healthy; it is the
// resolver's answer when the portal's listing page is down or the naming
// scheme shifts again.
var knownGoodFiles = knownTable{
	2024: {
		domain.DatasetSubgroup: "Enrollment_by_Subgroup_Metrics_2023-24_2024-10-16_09_19_46.csv",
		domain.DatasetGrade:    "Enrollment_by_Grade_2023-24_2024-10-16_09_20_11.csv",
	},
	2023: {
		domain.DatasetSubgroup: "Enrollment_by_Subgroup_Metrics_2022-23_2023-10-25_11_03_54.csv",
		domain.DatasetGrade:    "Enrollment_by_Grade_2022-23_2023-10-25_11_04_22.csv",
	},
	2022: {
		domain.DatasetSubgroup: "Enrollment_by_Subgroups_Programs_2022_2022-12-08_14_31_02.csv",
	},
	2021: {
		domain.DatasetSubgroup: "Enrollment_by_Subgroups_Programs_2021_2021-11-19_10_45_33.csv",
	},
	2020: {
		domain.DatasetSubgroup: "Enrollment_by_Subgroups_Programs_2020_2020-12-01_09_12_08.csv",
	},
	2019: {
		domain.DatasetSubgroup: "Enrollment_by_Subgroups_Programs_2019_2019-11-14_13_27_41.csv",
	},
	2018: {
		domain.DatasetSubgroup: "Enrollment_by_Subgroups_Programs_2018_2018-11-28_15_09_17.csv",
	},
	2017: {
		domain.DatasetSubgroup: "Enrollment_by_Subgroups_Programs_2017_2017-12-06_10_51_26.csv",
	},
	2016: {
		domain.DatasetSubgroup: "Enrollment_by_Subgroups_Programs_2016_2016-11-30_11_38_54.csv",
	},
	2015: {
		domain.DatasetSubgroup: "Enrollment_by_Subgroups_Programs_2015_2015-12-09_14_02_13.csv",
	},
	2014: {
		domain.DatasetSubgroup: "Enrollment_by_Subgroups_Programs_2014_2014-11-20_09_44_37.csv",
	},
	2013: {
		domain.DatasetSubgroup: "Enrollment_by_Subgroups_Programs_2013_2013-12-04_16_18_29.csv",
	},
	2012: {
		domain.DatasetSubgroup: "Enrollment_by_Subgroups_Programs_2012_2012-11-15_10_23_51.csv",
	},
	2011: {
		domain.DatasetSubgroup: "Enrollment_by_Subgroups_Programs_2011_2011-12-07_13_56_08.csv",
	},
}
