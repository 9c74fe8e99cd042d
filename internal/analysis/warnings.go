// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package analysis

import (
	"fmt"
)

// An advisory produced during analysis or compilation. Warnings never
// abort a run; they flag results that deserve a second look.
type Warning struct {
	Short string `json:"short"` // one-line summary suitable for a list view
	Long  string `json:"long"`  // full explanation
}

func (w Warning) String() string { return w.Short }

// Flags a ratio of ROI-mean spectral variance to mean per-pixel variance
// that falls in the band where cell-to-cell and subcellular contributions
// are of comparable size, making the averaged sigma hard to interpret.
func CheckMeanSpectraRatio(varRatio float64) (Warning, bool) {
	if varRatio>0.3 && varRatio<0.4 {
		return Warning{
			Short: "Mean spectra ratio in ambiguous range",
			Long:  fmt.Sprintf("The ratio of ROI-averaged spectral variance to mean per-pixel variance is %.3f, within the ambiguous band (0.3, 0.4)", varRatio),
		}, true
	}
	return Warning{}, false
}

// Flags a poor autocorrelation fit. rSquared is the mean coefficient of
// determination over the pixels being reported on.
func CheckRSquared(rSquared float64) (Warning, bool) {
	if rSquared<0.7 {
		return Warning{
			Short: "Low R-squared",
			Long:  fmt.Sprintf("Mean R-squared of the autocorrelation fit is %.3f, below 0.7; the reported slope may not be meaningful", rSquared),
		}, true
	}
	return Warning{}, false
}

// Flags a non-physical mean reflectance, usually the sign of a bad
// reference or over-subtracted extra reflection.
func CheckMeanReflectance(mean float64) (Warning, bool) {
	if mean<=0 {
		return Warning{
			Short: "Non-positive mean reflectance",
			Long:  fmt.Sprintf("Mean reflectance is %.4g; the reference or extra reflection correction is suspect", mean),
		}, true
	}
	return Warning{}, false
}
